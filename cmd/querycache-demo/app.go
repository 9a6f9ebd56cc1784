package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // pure Go driver

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/config"
)

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// usersAll is the list entry every user write invalidates.
var usersAll = querycache.NamespacedKey{Key: "all", Namespace: "users"}

const userCountKey = "user_count"

// app is a users table behind three result caches sharing one store.
type app struct {
	db      *sql.DB
	lists   *querycache.Cache[[]User]
	users   *querycache.Cache[User]
	counts  *querycache.Cache[int]
	log     querycache.Logger
	queries atomic.Int64 // statements that reached SQLite
}

func openDB(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// every connection would get its own :memory: database
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	const schema = `
	CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE
	);
	INSERT INTO users (name, email) VALUES
		('Ada Lovelace', 'ada@example.com'),
		('Alan Turing', 'alan@example.com'),
		('Grace Hopper', 'grace@example.com');`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

func newApp(db *sql.DB, cfg config.Config, b *backends, log querycache.Logger, hooks querycache.Hooks) (*app, error) {
	lists, err := querycache.New(options[[]User](cfg, b, codec.JSON[[]User]{}, log, hooks))
	if err != nil {
		return nil, err
	}
	users, err := querycache.New(options[User](cfg, b, codec.MustCBOR[User](true), log, hooks))
	if err != nil {
		return nil, err
	}
	counts, err := querycache.New(options[int](cfg, b, codec.Msgpack[int]{}, log, hooks))
	if err != nil {
		return nil, err
	}
	return &app{db: db, lists: lists, users: users, counts: counts, log: log}, nil
}

func (a *app) listUsers(ctx context.Context) ([]User, error) {
	return a.lists.Do(ctx, querycache.Call[[]User]{
		Model:     "user",
		Operation: "findMany",
		Args:      map[string]any{"orderBy": map[string]any{"id": "asc"}},
		Cache:     querycache.KeyOptions{Key: usersAll.Key, Namespace: usersAll.Namespace},
		Query: func(ctx context.Context, _ any) ([]User, error) {
			a.queries.Add(1)
			rows, err := a.db.QueryContext(ctx, `SELECT id, name, email FROM users ORDER BY id`)
			if err != nil {
				return nil, err
			}
			defer rows.Close()
			var out []User
			for rows.Next() {
				var u User
				if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
					return nil, err
				}
				out = append(out, u)
			}
			return out, rows.Err()
		},
	})
}

func (a *app) countUsers(ctx context.Context) (int, error) {
	return a.counts.Do(ctx, querycache.Call[int]{
		Model:     "user",
		Operation: "count",
		Cache:     userCountKey,
		Query: func(ctx context.Context, _ any) (int, error) {
			a.queries.Add(1)
			var n int
			err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
			return n, err
		},
	})
}

func userKey(id int64) string { return "user-" + strconv.FormatInt(id, 10) }

func (a *app) findUser(ctx context.Context, id int64) (User, error) {
	return a.users.Do(ctx, querycache.Call[User]{
		Model:     "user",
		Operation: "findUnique",
		Args:      map[string]any{"where": map[string]any{"id": id}},
		Cache:     querycache.KeyOptions{Key: userKey(id), TTL: time.Minute},
		Query: func(ctx context.Context, _ any) (User, error) {
			a.queries.Add(1)
			var u User
			err := a.db.QueryRowContext(ctx, `SELECT id, name, email FROM users WHERE id = ?`, id).
				Scan(&u.ID, &u.Name, &u.Email)
			return u, err
		},
	})
}

// createUser caches the new row under its id and drops the list and count.
func (a *app) createUser(ctx context.Context, name, email string) (User, error) {
	return a.users.Do(ctx, querycache.Call[User]{
		Model:     "user",
		Operation: "create",
		Args:      map[string]any{"data": map[string]any{"name": name, "email": email}},
		Cache:     querycache.DerivedKey[User]{Key: func(u User) string { return userKey(u.ID) }},
		Uncache:   []querycache.NamespacedKey{usersAll, {Key: userCountKey}},
		Query: func(ctx context.Context, _ any) (User, error) {
			a.queries.Add(1)
			res, err := a.db.ExecContext(ctx, `INSERT INTO users (name, email) VALUES (?, ?)`, name, email)
			if err != nil {
				return User{}, err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return User{}, err
			}
			return User{ID: id, Name: name, Email: email}, nil
		},
	})
}

// scenario reads twice, creates a user, then reads again.
func (a *app) scenario(ctx context.Context) error {
	for i := 0; i < 2; i++ {
		list, err := a.listUsers(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		n, err := a.countUsers(ctx)
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		u, err := a.findUser(ctx, 1)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		a.log.Info("read", querycache.Fields{"round": i, "users": len(list), "count": n, "first": u.Name, "queries": a.queries.Load()})
	}

	created, err := a.createUser(ctx, "Barbara Liskov", "barbara@example.com")
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	a.log.Info("created", querycache.Fields{"id": created.ID, "queries": a.queries.Load()})

	if _, err := a.findUser(ctx, created.ID); err != nil {
		return fmt.Errorf("find created user: %w", err)
	}
	list, err := a.listUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	n, err := a.countUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	a.log.Info("read after write", querycache.Fields{"users": len(list), "count": n, "queries": a.queries.Load()})
	return nil
}
