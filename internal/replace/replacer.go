// Package replace swaps the schema document registered in the context store
// for a freshly fetched copy.
package replace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/ctxsync/internal/config"
	"github.com/kalambet/ctxsync/internal/document"
	"github.com/kalambet/ctxsync/internal/transport"
)

// Resolver maps an environment name to its addresses. config.Config
// implements it.
type Resolver interface {
	Resolve(name string) (config.Environment, error)
}

// Fetcher reads the current document from the documentation origin.
type Fetcher interface {
	Fetch(ctx context.Context, env config.Environment) (*document.Document, error)
}

// Store is the subset of the context store a replace run needs.
type Store interface {
	Exists(ctx context.Context, env config.Environment, fragment string) (bool, error)
	DeleteBySource(ctx context.Context, env config.Environment, source string) (any, error)
	Add(ctx context.Context, env config.Environment, doc *document.Document) (bool, error)
}

// Replacer runs the check/fetch/delete/upload sequence. It holds no state
// between runs. Two runs against the same environment at the same time can
// interleave their deletes and uploads; callers must not do that.
type Replacer struct {
	envs         Resolver
	origin       Fetcher
	store        Store
	fileName     string
	deletePolicy DeletePolicy
	logger       *slog.Logger
}

// Option configures a Replacer.
type Option func(*Replacer)

// WithDeletePolicy overrides ContinueOnDeleteFailure.
func WithDeletePolicy(p DeletePolicy) Option {
	return func(r *Replacer) { r.deletePolicy = p }
}

// WithLogger sets the logger. Each run adds its invocation id.
func WithLogger(l *slog.Logger) Option {
	return func(r *Replacer) { r.logger = l }
}

// New creates a Replacer that manages the registration named fileName.
func New(envs Resolver, origin Fetcher, store Store, fileName string, opts ...Option) *Replacer {
	r := &Replacer{
		envs:         envs,
		origin:       origin,
		store:        store,
		fileName:     fileName,
		deletePolicy: ContinueOnDeleteFailure,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Replace runs once against the named environment and returns the outcome.
// It never panics and never returns an error; use Run for details.
func (r *Replacer) Replace(ctx context.Context, envName string) Result {
	return r.Run(ctx, envName).Result
}

// Run is Replace with a diagnostic report. The sequence is:
//
//  1. check for an existing registration and fetch the document, in parallel;
//     both finish before anything else happens and neither cancels the other
//  2. a registration exists: delete it, then apply the delete policy
//  3. no document: stop with NoOp; a stale registration is already gone
//  4. upload; Success if the store accepted it
//
// Only the upload has a deadline. Pass a context with a deadline to bound the
// whole run.
func (r *Replacer) Run(ctx context.Context, envName string) (rep Report) {
	start := time.Now()
	rep.InvocationID = uuid.New().String()
	log := r.logger.With("invocation_id", rep.InvocationID)

	defer func() {
		if p := recover(); p != nil {
			rep.Result = Failure
			rep.Err = fmt.Errorf("panic: %v", p)
			log.Error("replace panicked", "panic", p, "stack", string(debug.Stack()))
		}
		rep.Duration = time.Since(start)
		log.Info("replace finished",
			"result", rep.Result.String(),
			"duration_ms", rep.Duration.Milliseconds(),
		)
	}()

	env, err := r.envs.Resolve(envName)
	if err != nil {
		rep.Result = Failure
		rep.Err = err
		log.Error("cannot resolve environment", "environment", envName, "error", err)
		return rep
	}
	rep.Environment = env.Name
	log = log.With("environment", env.Name)
	ctx = transport.WithRequestID(ctx, rep.InvocationID)

	var (
		exists   bool
		checkErr error
		doc      *document.Document
		fetchErr error
	)
	var g errgroup.Group
	g.Go(recovered(func() {
		exists, checkErr = r.store.Exists(ctx, env, r.fileName)
	}))
	g.Go(recovered(func() {
		doc, fetchErr = r.origin.Fetch(ctx, env)
	}))
	if err := g.Wait(); err != nil {
		rep.Result = Failure
		rep.Err = err
		log.Error("check or fetch panicked", "error", err)
		return rep
	}

	rep.Existed = exists
	rep.CheckErr = checkErr
	if checkErr != nil {
		log.Warn("could not check for an existing registration; delete skipped", "error", checkErr)
	}

	if exists {
		rep.DeleteAttempted = true
		if _, err := r.store.DeleteBySource(ctx, env, r.fileName); err != nil {
			rep.DeleteErr = err
			if r.deletePolicy == AbortOnDeleteFailure {
				rep.Result = Failure
				rep.Err = fmt.Errorf("deleting existing registration: %w", err)
				log.Error("delete failed; upload skipped", "policy", r.deletePolicy.String(), "error", err)
				return rep
			}
			log.Warn("delete failed; continuing", "policy", r.deletePolicy.String(), "error", err)
		} else {
			rep.Deleted = true
		}
	}

	if doc.Empty() {
		if fetchErr == nil {
			fetchErr = errors.New("origin returned an empty document")
		}
		rep.Result = NoOp
		rep.FetchErr = fetchErr
		log.Warn("no document available upstream; nothing uploaded", "deleted", rep.Deleted, "error", fetchErr)
		return rep
	}
	rep.PathCount = doc.PathCount()

	ok, err := r.store.Add(ctx, env, doc)
	if !ok {
		if err == nil {
			err = errors.New("upload was not accepted")
		}
		rep.Result = Failure
		rep.Err = err
		log.Error("upload failed", "error", err)
		return rep
	}

	rep.Uploaded = true
	rep.Result = Success
	return rep
}

// recovered adapts fn for errgroup, turning a panic into an error so one
// branch cannot take down the process or the other branch.
func recovered(fn func()) func() error {
	return func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		fn()
		return nil
	}
}
