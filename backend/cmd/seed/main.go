package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"go.uber.org/zap"

	"aurora/backend/internal/constants"
	"aurora/backend/internal/content"
	"aurora/backend/internal/graph"
	"aurora/backend/pkg/config"
	apperrors "aurora/backend/pkg/errors"
	"aurora/backend/pkg/logger"
)

// subthreadRoots are the starter topics per built-in realm
var subthreadRoots = map[string][]string{
	"Tech":           {"AI", "Web3", "Rust", "Cyber", "Cloud", "Quantum", "Data", "Edge", "LLM", "Robotics"},
	"Art":            {"NFT", "3D", "Sketch", "Abstract", "Digital", "Voxel", "Generative", "Pixel", "Sculpt", "Oil"},
	"Music":          {"LoFi", "Synth", "Jazz", "Techno", "Bass", "Trap", "Ambient", "House", "Indie", "Rock"},
	"Science":        {"Space", "Bio", "Neuro", "Physics", "Chem", "Eco", "Solar", "Atom", "Geo", "Lab"},
	"Cinematography": {"Shorts", "4K", "Drone", "Doc", "Vlog", "Edit", "Color", "Lens", "Set", "Light"},
	"Sports":         {"Goal", "Dunk", "Race", "Gym", "Yoga", "Hike", "Swim", "Run", "Bike", "Fit"},
	"Photography":    {"Portrait", "Street", "Macro", "Film", "B&W", "Landscape", "Wildlife", "Night", "Fashion", "Raw"},
	"Literature":     {"Poetry", "SciFi", "Novel", "Essay", "Haiku", "Fiction", "Journal", "Satire", "Drama", "Review"},
}

var prefixes = []string{"Neo", "Hyper", "Core", "Meta", "Ultra", "Deep", "Pro", "Flux", "Omni", "Zen"}

func main() {
	perRealm := flag.Int("subthreads", 30, "Subthreads to create per realm")
	realmsOnly := flag.Bool("realms-only", false, "Only seed the realm catalog")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting database seeding...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.StoreBackend != config.StoreNeo4j {
		log.Fatal("Seeding needs the neo4j backend", zap.String("store", cfg.StoreBackend))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	repo := graph.NewRepository(driver, cfg.Neo4jDatabase)
	defer repo.Close(context.Background())

	log.Info("Creating constraints...")
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to create constraints", zap.Error(err))
	}

	realms := content.BuiltinRealms()
	if cfg.RealmsFile != "" {
		if realms, err = content.LoadCatalog(cfg.RealmsFile); err != nil {
			log.Fatal("Failed to load realm catalog", zap.Error(err))
		}
	}

	svc, err := content.NewService(repo, content.Options{})
	if err != nil {
		log.Fatal("Failed to create content service", zap.Error(err))
	}
	if err := svc.Seed(ctx, realms); err != nil {
		log.Fatal("Failed to seed realms", zap.Error(err))
	}
	log.Info("Realms seeded", zap.Int("count", len(realms)))

	if *realmsOnly {
		return
	}

	created, skipped, err := seedSubthreads(ctx, svc, *perRealm)
	if err != nil {
		log.Fatal("Failed to seed subthreads", zap.Error(err))
	}
	log.Info("Seeding complete", zap.Int("subthreads", created), zap.Int("skipped", skipped))
}

// SubthreadCreator is the content operation the seeder drives
type SubthreadCreator interface {
	CreateSubthread(ctx context.Context, realm, name string) (*graph.Subthread, error)
}

// seedSubthreads creates perRealm subthreads under each realm with starter topics.
// Repeated names just raise popularity; names owned by another realm or realms
// missing from the catalog are skipped.
func seedSubthreads(ctx context.Context, svc SubthreadCreator, perRealm int) (created, skipped int, err error) {
	log := logger.Named("seed")
	for realm, roots := range subthreadRoots {
		for i := 0; i < perRealm; i++ {
			name := subthreadName(roots, i)
			if _, err := svc.CreateSubthread(ctx, realm, name); err != nil {
				if apperrors.IsConflict(err) || apperrors.IsNotFound(err) || apperrors.IsValidation(err) {
					log.Debug("Skipping subthread", zap.String("realm", realm), zap.String("name", name), zap.Error(err))
					skipped++
					continue
				}
				return created, skipped, err
			}
			created++
		}
	}
	return created, skipped, nil
}

// subthreadName picks the i-th starter name: bare roots first, then one prefix
// per further pass over the roots. Roots below the minimum length are always prefixed.
func subthreadName(roots []string, i int) string {
	root := roots[i%len(roots)]
	pass := i / len(roots)
	if pass == 0 && len(root) >= constants.SubthreadNameMinLength {
		return root
	}
	return prefixes[pass%len(prefixes)] + root
}
