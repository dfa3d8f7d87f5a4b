// Package memory is an in-process graph store with the same get-or-create
// semantics as the Neo4j repository. One mutex guards the whole graph, so every
// call is a single atomic statement.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"aurora/backend/internal/constants"
	"aurora/backend/internal/graph"
	apperrors "aurora/backend/pkg/errors"
)

type userNode struct {
	user         graph.User
	passwordHash string
	placeholder  bool
}

type postNode struct {
	post      graph.Post
	author    string
	subthread string
	realm     string
}

type edgeKey struct {
	from string
	to   string
}

type messageNode struct {
	msg graph.Message
	seq int
}

// Store implements graph.Store in memory
type Store struct {
	mu sync.RWMutex

	users      map[string]*userNode
	realms     map[string]graph.Realm
	subthreads map[string]*graph.Subthread
	posts      map[string]*postNode
	postOrder  []string
	likes      map[edgeKey]time.Time
	dislikes   map[edgeKey]time.Time
	views      map[string][]graph.ViewRecord
	follows    map[edgeKey]time.Time
	messages   []messageNode
}

var _ graph.Store = (*Store)(nil)

// NewStore creates an empty in-memory graph
func NewStore() *Store {
	return &Store{
		users:      make(map[string]*userNode),
		realms:     make(map[string]graph.Realm),
		subthreads: make(map[string]*graph.Subthread),
		posts:      make(map[string]*postNode),
		likes:      make(map[edgeKey]time.Time),
		dislikes:   make(map[edgeKey]time.Time),
		views:      make(map[string][]graph.ViewRecord),
		follows:    make(map[edgeKey]time.Time),
	}
}

// EnsureSchema is a no-op; map keys already enforce uniqueness
func (s *Store) EnsureSchema(ctx context.Context) error { return nil }

// Close is a no-op
func (s *Store) Close(ctx context.Context) error { return nil }

// registered returns the user when it exists and is not a chat placeholder
func (s *Store) registered(username string) (*userNode, bool) {
	u, ok := s.users[username]
	if !ok || u.placeholder {
		return nil, false
	}
	return u, true
}

// ============================================================================
// Realms and subthreads
// ============================================================================

func (s *Store) SeedRealms(ctx context.Context, realms []graph.Realm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range realms {
		r.AllowedMedia = append([]string(nil), r.AllowedMedia...)
		s.realms[r.Name] = r
	}
	return nil
}

func (s *Store) GetRealm(ctx context.Context, name string) (*graph.Realm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.realms[name]
	if !ok {
		return nil, apperrors.NewNotFound("realm", name)
	}
	return &r, nil
}

func (s *Store) ListRealms(ctx context.Context) ([]graph.Realm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	realms := lo.Values(s.realms)
	sort.Slice(realms, func(i, j int) bool { return realms[i].Name < realms[j].Name })
	return realms, nil
}

func (s *Store) CreateSubthread(ctx context.Context, realm, name string, now time.Time) (*graph.Subthread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.realms[realm]; !ok {
		return nil, apperrors.NewNotFound("realm", realm)
	}
	sub, ok := s.subthreads[name]
	if !ok {
		sub = &graph.Subthread{Name: name, Realm: realm, CreatedAt: now.UTC()}
		s.subthreads[name] = sub
	} else if sub.Realm != realm {
		return nil, apperrors.NewConflict("subthread", name, "owned by another realm")
	}
	sub.Popularity++
	out := *sub
	out.PostCount = s.postsIn(name)
	return &out, nil
}

// postsIn counts the posts of a subthread; callers hold the lock
func (s *Store) postsIn(subthread string) int64 {
	return int64(lo.CountBy(lo.Values(s.posts), func(p *postNode) bool {
		return p.subthread == subthread
	}))
}

func (s *Store) ListSubthreads(ctx context.Context, realm string, limit int) ([]graph.Subthread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := make([]graph.Subthread, 0)
	for _, sub := range s.subthreads {
		if sub.Realm == realm {
			out := *sub
			out.PostCount = s.postsIn(sub.Name)
			subs = append(subs, out)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Popularity != subs[j].Popularity {
			return subs[i].Popularity > subs[j].Popularity
		}
		return subs[i].Name < subs[j].Name
	})
	if len(subs) > limit {
		subs = subs[:limit]
	}
	return subs, nil
}

func (s *Store) GetSubthreadRealm(ctx context.Context, subthread string) (*graph.Realm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subthreads[subthread]
	if !ok {
		return nil, apperrors.NewNotFound("subthread", subthread)
	}
	r := s.realms[sub.Realm]
	return &r, nil
}

// ============================================================================
// Users
// ============================================================================

func (s *Store) CreateUser(ctx context.Context, nu graph.NewUser) (*graph.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[nu.Username]; ok && !existing.placeholder {
		return nil, apperrors.NewConflict("user", nu.Username, "username already exists")
	}
	node := &userNode{
		user: graph.User{
			Username:        nu.Username,
			ReputationScore: constants.DefaultReputationScore,
			CreatedAt:       nu.CreatedAt.UTC(),
		},
		passwordHash: nu.PasswordHash,
	}
	s.users[nu.Username] = node
	out := node.user
	return &out, nil
}

func (s *Store) GetCredentials(ctx context.Context, username string) (*graph.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.registered(username)
	if !ok {
		return nil, apperrors.NewNotFound("user", username)
	}
	return &graph.Credentials{Username: username, PasswordHash: u.passwordHash}, nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*graph.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.registered(username)
	if !ok {
		return nil, apperrors.NewNotFound("user", username)
	}
	out := u.user
	return &out, nil
}

func (s *Store) UpdateProfileImage(ctx context.Context, username, imageURL string, palette []string) (*graph.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.registered(username)
	if !ok {
		return nil, apperrors.NewNotFound("user", username)
	}
	u.user.ProfileImage = &imageURL
	u.user.ProfileColors = append([]string(nil), palette...)
	out := u.user
	return &out, nil
}

// ============================================================================
// Posts
// ============================================================================

func (s *Store) CreatePost(ctx context.Context, np graph.NewPost) (*graph.PostSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subthreads[np.Subthread]
	if !ok {
		return nil, apperrors.NewNotFound("subthread", np.Subthread)
	}
	realm := s.realms[sub.Realm]
	if !realm.Allows(np.MediaKind) {
		return nil, apperrors.NewValidation("media_kind", np.MediaKind+" is not allowed in "+realm.Name)
	}
	if _, ok := s.registered(np.Author); !ok {
		return nil, apperrors.NewNotFound("user", np.Author)
	}
	if _, exists := s.posts[np.ID]; exists {
		return nil, apperrors.NewConflict("post", np.ID, "id already exists")
	}

	node := &postNode{
		post: graph.Post{
			ID:            np.ID,
			Title:         np.Title,
			MediaURL:      np.MediaURL,
			MediaKind:     np.MediaKind,
			ThumbnailURL:  np.ThumbnailURL,
			Colors:        np.Colors,
			Timeline:      np.Timeline,
			VelocityScore: np.VelocityScore,
			CreatedAt:     np.CreatedAt.UTC(),
		},
		author:    np.Author,
		subthread: sub.Name,
		realm:     realm.Name,
	}
	s.posts[np.ID] = node
	s.postOrder = append(s.postOrder, np.ID)
	summary := node.summary()
	return &summary, nil
}

func (p *postNode) summary() graph.PostSummary {
	return graph.PostSummary{Post: p.post, Author: p.author, Subthread: p.subthread, Realm: p.realm}
}

func (s *Store) CountPostsByAuthorInRealm(ctx context.Context, author, realm string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.CountBy(lo.Values(s.posts), func(p *postNode) bool {
		return p.author == author && p.realm == realm && !p.post.CreatedAt.Before(since)
	}), nil
}

func (s *Store) GetPost(ctx context.Context, id string) (*graph.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, apperrors.NewNotFound("post", id)
	}
	out := p.post
	return &out, nil
}

// newest returns posts by created_at desc; insertion order breaks ties
func (s *Store) newest(limit int) []*postNode {
	nodes := lo.Map(s.postOrder, func(id string, _ int) *postNode { return s.posts[id] })
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].post.CreatedAt.After(nodes[j].post.CreatedAt)
	})
	if len(nodes) > limit {
		nodes = nodes[:limit]
	}
	return nodes
}

func (s *Store) ExploreFeed(ctx context.Context, limit int) ([]graph.PostSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Map(s.newest(limit), func(p *postNode, _ int) graph.PostSummary { return p.summary() }), nil
}

func (s *Store) MixedFeed(ctx context.Context, limit int) ([]graph.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Map(s.newest(limit), func(p *postNode, _ int) graph.Post { return p.post }), nil
}

// ============================================================================
// Engagement
// ============================================================================

func (s *Store) ApplyReaction(ctx context.Context, username, postID string, kind graph.InteractionKind, delta float64, now time.Time) (*graph.ScoreChange, error) {
	var edges map[edgeKey]time.Time
	switch kind {
	case graph.InteractionLike:
		edges = s.likes
	case graph.InteractionDislike:
		edges = s.dislikes
	default:
		return nil, apperrors.NewValidation("type", fmt.Sprintf("%q is not a reaction", kind))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.engagementTarget(username, postID)
	if err != nil {
		return nil, err
	}
	key := edgeKey{from: username, to: postID}
	_, exists := edges[key]
	if !exists {
		edges[key] = now.UTC()
		p.post.VelocityScore += delta
	}
	return &graph.ScoreChange{PostID: postID, Score: p.post.VelocityScore, Created: !exists}, nil
}

func (s *Store) RecordView(ctx context.Context, username, postID string, durationSeconds int, now time.Time) (*graph.ViewRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.engagementTarget(username, postID); err != nil {
		return nil, err
	}
	view := graph.ViewRecord{PostID: postID, DurationSeconds: durationSeconds, At: now.UTC()}
	s.views[postID] = append(s.views[postID], view)
	return &view, nil
}

func (s *Store) engagementTarget(username, postID string) (*postNode, error) {
	if _, ok := s.registered(username); !ok {
		return nil, apperrors.NewNotFound("user", username)
	}
	p, ok := s.posts[postID]
	if !ok {
		return nil, apperrors.NewNotFound("post", postID)
	}
	return p, nil
}

// ============================================================================
// Follows
// ============================================================================

func (s *Store) Follow(ctx context.Context, follower, followee string, now time.Time) (*graph.FollowEdge, error) {
	if follower == followee {
		return nil, apperrors.NewValidation("username", "cannot follow yourself")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.registered(followee); !ok {
		return nil, apperrors.NewNotFound("user", followee)
	}
	if _, ok := s.registered(follower); !ok {
		return nil, apperrors.NewNotFound("user", follower)
	}
	key := edgeKey{from: follower, to: followee}
	since, exists := s.follows[key]
	if !exists {
		since = now.UTC()
		s.follows[key] = since
	}
	return &graph.FollowEdge{Follower: follower, Followee: followee, Since: since, Created: !exists}, nil
}

func (s *Store) CountFollowers(ctx context.Context, username string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.CountBy(lo.Keys(s.follows), func(k edgeKey) bool { return k.to == username }), nil
}

func (s *Store) CountFollowing(ctx context.Context, username string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.CountBy(lo.Keys(s.follows), func(k edgeKey) bool { return k.from == username }), nil
}

func (s *Store) IsFollowing(ctx context.Context, follower, followee string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.follows[edgeKey{from: follower, to: followee}]
	return ok, nil
}

// ============================================================================
// Messages
// ============================================================================

func (s *Store) SaveChatMessage(ctx context.Context, msg graph.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range []string{msg.From, msg.To} {
		if _, ok := s.users[name]; !ok {
			s.users[name] = &userNode{
				user:        graph.User{Username: name, CreatedAt: msg.Timestamp.UTC()},
				placeholder: true,
			}
		}
	}
	s.appendMessage(msg)
	return nil
}

func (s *Store) SaveDirectMessage(ctx context.Context, msg graph.Message) (*graph.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.registered(msg.To); !ok {
		return nil, apperrors.NewNotFound("user", msg.To)
	}
	if _, ok := s.registered(msg.From); !ok {
		return nil, apperrors.NewNotFound("user", msg.From)
	}
	saved := s.appendMessage(msg)
	return &saved, nil
}

func (s *Store) appendMessage(msg graph.Message) graph.Message {
	msg.Timestamp = msg.Timestamp.UTC()
	s.messages = append(s.messages, messageNode{msg: msg, seq: len(s.messages)})
	return msg
}

func (s *Store) History(ctx context.Context, user1, user2 string) ([]graph.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	between := lo.Filter(s.messages, func(m messageNode, _ int) bool {
		return (m.msg.From == user1 && m.msg.To == user2) || (m.msg.From == user2 && m.msg.To == user1)
	})
	sort.SliceStable(between, func(i, j int) bool {
		a, b := between[i].msg, between[j].msg
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
	return lo.Map(between, func(m messageNode, _ int) graph.HistoryEntry {
		return graph.HistoryEntry{ID: m.msg.ID, From: m.msg.From, Content: m.msg.Content, Timestamp: m.msg.Timestamp}
	}), nil
}

// ============================================================================
// Inspection helpers for tests and diagnostics
// ============================================================================

// ViewCount returns the number of VIEWED edges on a post
func (s *Store) ViewCount(postID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.views[postID])
}

// ReactionCount returns the number of LIKED or DISLIKED edges on a post
func (s *Store) ReactionCount(postID string, kind graph.InteractionKind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edges := s.likes
	if kind == graph.InteractionDislike {
		edges = s.dislikes
	}
	return lo.CountBy(lo.Keys(edges), func(k edgeKey) bool { return k.to == postID })
}

// FollowCount returns the number of FOLLOWS edges from follower to followee (0 or 1)
func (s *Store) FollowCount(follower, followee string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.follows[edgeKey{from: follower, to: followee}]
	return lo.Ternary(ok, 1, 0)
}

// PostCount returns the number of stored posts
func (s *Store) PostCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// UserCount returns the number of user nodes named username, placeholders included
func (s *Store) UserCount(username string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[username]
	return lo.Ternary(ok, 1, 0)
}
