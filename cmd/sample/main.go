// Command sample runs a small user service on the reroute engine,
// exercising file-tree routing, parameter resolution, and the behavior
// chain.
//
// Run:
//
//	go run ./cmd/sample
//	go run ./cmd/sample -config config.yaml
//	go run ./cmd/sample -redis localhost:6379
//
// Then explore:
//
//	GET    http://localhost:8080/health
//	GET    http://localhost:8080/users?role=admin
//	POST   http://localhost:8080/users
//	GET    http://localhost:8080/users/1
//	DELETE http://localhost:8080/users/1        (needs X-Subject + X-Roles: admin)
//	GET    http://localhost:8080/users/me       (static beats [id])
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"time"

	"github.com/bjaus/reroute"
	"github.com/redis/go-redis/v9"
)

func main() {
	configFlag := flag.String("config", "", "Path to a YAML config file")
	redisFlag := flag.String("redis", "", "Redis address for shared cache and rate-limit stores")
	addrFlag := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	if err := run(*configFlag, *redisFlag, *addrFlag, logger); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

func run(configPath, redisAddr, addr string, logger *slog.Logger) error {
	cfg := reroute.DefaultConfig()
	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("open config: %w", err)
		}
		cfg, err = reroute.LoadConfig(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	ec := reroute.EngineConfig{Config: &cfg, Logger: logger}
	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		ec.Cache = reroute.NewRedisCache(client, "sample:cache:")
		ec.Limits = reroute.NewRedisRateLimitStore(client, "sample:rate:")
	}

	engine := reroute.NewEngine(ec)
	defer engine.Close()

	tree, err := buildTree(cfg)
	if err != nil {
		return fmt.Errorf("build routes: %w", err)
	}
	for _, rt := range tree.Routes() {
		logger.Info("route", "method", rt.Method, "path", rt.Path, "tag", rt.Tag)
	}

	handler := reroute.Mount(tree, reroute.NewDispatcher(engine),
		reroute.WithMiddleware(
			reroute.Recovery(),
			reroute.RequestID(),
			reroute.AccessLog(logger),
		),
	)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

func buildTree(cfg reroute.Config) (*reroute.Tree, error) {
	store := newUserStore()

	root := &reroute.Dir{
		Name: "",
		Children: []*reroute.Dir{
			{
				Name:     "health",
				Endpoint: &reroute.Endpoint{Handler: healthHandler{}},
			},
			{
				Name: "users",
				Endpoint: &reroute.Endpoint{
					Handler: &usersHandler{store: store},
					Params: map[string][]reroute.ParamSpec{
						http.MethodGet: {
							reroute.Query("role", reroute.KindString),
							reroute.Query("limit", reroute.KindInt, reroute.Default("50"), reroute.Min(1), reroute.Max(200)),
						},
						http.MethodPost: {
							reroute.Body("user", reroute.KindModel, createUser{}, reroute.Required()),
						},
					},
					Behaviors: map[string][]reroute.Behavior{
						http.MethodGet: {
							reroute.Cache{TTL: 30 * time.Second},
							reroute.Log{},
						},
						http.MethodPost: {
							reroute.RateLimit{Limit: 10, Window: time.Minute},
							reroute.Log{},
						},
					},
				},
				Children: []*reroute.Dir{
					{
						Name: "me",
						Endpoint: &reroute.Endpoint{
							Handler: meHandler{},
							Params: map[string][]reroute.ParamSpec{
								http.MethodGet: {
									reroute.HeaderParam("X-Subject", reroute.KindString, reroute.Required()),
								},
							},
							Behaviors: map[string][]reroute.Behavior{
								http.MethodGet: {reroute.Requires{}},
							},
						},
					},
					{
						Name: "[id]",
						Endpoint: &reroute.Endpoint{
							Handler: &userHandler{store: store},
							Params: map[string][]reroute.ParamSpec{
								http.MethodGet: {
									reroute.PathParam("id", reroute.KindInt, reroute.Min(1)),
								},
								http.MethodDelete: {
									reroute.PathParam("id", reroute.KindInt, reroute.Min(1)),
								},
							},
							Behaviors: map[string][]reroute.Behavior{
								http.MethodGet: {
									reroute.Cache{TTL: time.Minute},
									reroute.Timeout{Limit: 2 * time.Second},
								},
								http.MethodDelete: {
									reroute.Requires{Roles: []string{"admin"}},
									reroute.Log{},
								},
							},
						},
					},
				},
			},
		},
	}

	return reroute.Build(root, reroute.WithConfig(cfg))
}

// ---------- handlers ----------

type healthHandler struct{}

func (healthHandler) Get(context.Context, reroute.Args) (any, error) {
	return map[string]any{"status": "ok", "time": time.Now().UTC()}, nil
}

func (healthHandler) Tag() string { return "ops" }

type user struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type createUser struct {
	Name  string `json:"name" required:"true" minLength:"2" maxLength:"80"`
	Email string `json:"email" required:"true" pattern:"^[^@\\s]+@[^@\\s]+$"`
	Role  string `json:"role" enum:"admin,member,viewer"`
}

type userStore struct {
	mu     sync.Mutex
	users  map[int64]user
	nextID int64
}

func newUserStore() *userStore {
	s := &userStore{users: make(map[int64]user), nextID: 1}
	s.add(user{Name: "Ada", Email: "ada@example.com", Role: "admin"})
	s.add(user{Name: "Linus", Email: "linus@example.com", Role: "member"})
	return s
}

func (s *userStore) add(u user) user {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.nextID
	s.nextID++
	s.users[u.ID] = u
	return u
}

func (s *userStore) get(id int64) (user, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *userStore) remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	delete(s.users, id)
	return ok
}

func (s *userStore) list(role string, limit int64) []user {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]user, 0, len(s.users))
	for _, u := range s.users {
		if role != "" && u.Role != role {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out
}

type usersHandler struct {
	store *userStore
}

func (h *usersHandler) Get(_ context.Context, args reroute.Args) (any, error) {
	return h.store.list(args.String("role"), args.Int("limit")), nil
}

func (h *usersHandler) Post(_ context.Context, args reroute.Args) (any, error) {
	in, ok := args.Model("user").(*createUser)
	if !ok {
		return nil, fmt.Errorf("missing user payload")
	}
	role := in.Role
	if role == "" {
		role = "member"
	}
	return h.store.add(user{Name: in.Name, Email: in.Email, Role: role}), nil
}

func (h *usersHandler) Tag() string { return "users" }

type userHandler struct {
	store *userStore
}

func (h *userHandler) Get(_ context.Context, args reroute.Args) (any, error) {
	u, ok := h.store.get(args.Int("id"))
	if !ok {
		return nil, &reroute.NotFoundError{Path: fmt.Sprintf("/users/%d", args.Int("id"))}
	}
	return u, nil
}

func (h *userHandler) Delete(_ context.Context, args reroute.Args) (any, error) {
	if !h.store.remove(args.Int("id")) {
		return nil, &reroute.NotFoundError{Path: fmt.Sprintf("/users/%d", args.Int("id"))}
	}
	return nil, nil
}

func (h *userHandler) Tag() string { return "users" }

// meHandler answers for the authenticated caller; the static "me" segment
// shadows the dynamic [id] sibling.
type meHandler struct{}

func (meHandler) Get(_ context.Context, args reroute.Args) (any, error) {
	return map[string]string{"subject": args.String("X-Subject")}, nil
}
