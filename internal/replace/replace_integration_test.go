package replace_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/ctxsync/internal/config"
	"github.com/kalambet/ctxsync/internal/contextstore"
	"github.com/kalambet/ctxsync/internal/contextstore/storetest"
	"github.com/kalambet/ctxsync/internal/origin"
	"github.com/kalambet/ctxsync/internal/replace"
)

const token = "platform-key"

type staticEnvs struct{ env config.Environment }

func (s staticEnvs) Resolve(name string) (config.Environment, error) {
	if name != "" && name != s.env.Name {
		return config.Environment{}, &config.UnknownEnvironmentError{Name: name, Known: []string{s.env.Name}}
	}
	return s.env, nil
}

func newReplacer(t *testing.T, srv *httptest.Server, opts ...replace.Option) *replace.Replacer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := contextstore.New(token, contextstore.WithLogger(logger))
	require.NoError(t, err)
	envs := staticEnvs{config.Environment{Name: "staging", BaseURL: srv.URL, StoreURL: srv.URL}}
	src := origin.New(origin.DefaultPath, origin.WithLogger(logger))
	opts = append([]replace.Option{replace.WithLogger(logger)}, opts...)
	return replace.New(envs, src, store, store.FileName(), opts...)
}

func TestRun_FreshUpload(t *testing.T) {
	platform, srv := storetest.Start(t, token)
	platform.ServeDocument(`{"paths":{"/a":{},"/b":{}}}`)

	rep := newReplacer(t, srv).Run(context.Background(), "staging")

	require.Equal(t, replace.Success, rep.Result, "err: %v", rep.Err)
	assert.Equal(t, 2, rep.PathCount)
	assert.False(t, rep.Existed)
	assert.Empty(t, platform.Deletes())

	adds := platform.Adds()
	require.Len(t, adds, 1)
	assert.Equal(t, "openapi.json", adds[0].FileName)
	assert.Equal(t, len(adds[0].Content)*16, adds[0].FileSize)
	assert.JSONEq(t, `{"paths":{"/a":{},"/b":{}}}`, adds[0].Content)
}

func TestRun_ReplacesExisting(t *testing.T) {
	platform, srv := storetest.Start(t, token)
	platform.Register("old/openapi.json", "openapi.json")
	platform.ServeDocument(`{"openapi":"3.1.0","paths":{"/v2":{}}}`)

	rep := newReplacer(t, srv).Run(context.Background(), "staging")

	require.Equal(t, replace.Success, rep.Result, "err: %v", rep.Err)
	assert.True(t, rep.Deleted)

	deletes := platform.Deletes()
	require.Len(t, deletes, 1)
	assert.Equal(t, contextstore.DeleteRequest{Source: "openapi.json", ByDoc: true}, deletes[0])

	regs := platform.Registrations()
	require.Len(t, regs, 1, "old registration should be gone, new one present")
	assert.NotEqual(t, "old/openapi.json", regs[0].ID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(regs[0].Add.Content), &payload))
	assert.Equal(t, "3.1.0", payload["openapi"])
}

func TestRun_OriginDownIsNoOp(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			platform, srv := storetest.Start(t, token)
			platform.Register("old/openapi.json", "openapi.json")
			platform.SetOrigin(status, `{"error":"down"}`)

			rep := newReplacer(t, srv).Run(context.Background(), "staging")

			assert.Equal(t, replace.NoOp, rep.Result)
			assert.True(t, rep.Existed)
			assert.Empty(t, platform.Adds())

			deletes := platform.Deletes()
			require.Len(t, deletes, 1, "stale registration is deleted even without a fresh document")
			assert.Equal(t, contextstore.DeleteRequest{Source: "openapi.json", ByDoc: true}, deletes[0])
			assert.Empty(t, platform.Registrations())
		})
	}
}

func TestRun_MalformedOriginIsNoOp(t *testing.T) {
	platform, srv := storetest.Start(t, token)
	platform.ServeDocument(`{"paths":`)

	rep := newReplacer(t, srv).Run(context.Background(), "staging")

	assert.Equal(t, replace.NoOp, rep.Result)
	assert.Empty(t, platform.Adds())
}

func TestRun_DeleteFailureStillUploads(t *testing.T) {
	platform, srv := storetest.Start(t, token)
	platform.Register("old/openapi.json", "openapi.json")
	platform.ServeDocument(`{"paths":{}}`)
	platform.FailDelete(http.StatusInternalServerError)

	rep := newReplacer(t, srv).Run(context.Background(), "staging")

	assert.Equal(t, replace.Success, rep.Result)
	assert.Error(t, rep.DeleteErr)
	assert.Len(t, platform.Adds(), 1)
	assert.Len(t, platform.Registrations(), 2)
}

func TestRun_DeleteFailureAborts(t *testing.T) {
	platform, srv := storetest.Start(t, token)
	platform.Register("old/openapi.json", "openapi.json")
	platform.ServeDocument(`{"paths":{}}`)
	platform.FailDelete(http.StatusInternalServerError)

	rep := newReplacer(t, srv, replace.WithDeletePolicy(replace.AbortOnDeleteFailure)).
		Run(context.Background(), "staging")

	assert.Equal(t, replace.Failure, rep.Result)
	assert.Empty(t, platform.Adds())
}

func TestRun_UploadRejected(t *testing.T) {
	platform, srv := storetest.Start(t, token)
	platform.ServeDocument(`{"paths":{}}`)
	platform.FailAdd(http.StatusRequestEntityTooLarge)

	assert.Equal(t, replace.Failure, newReplacer(t, srv).Replace(context.Background(), "staging"))
}

func TestRun_ListFailureSkipsDelete(t *testing.T) {
	platform, srv := storetest.Start(t, token)
	platform.Register("old/openapi.json", "openapi.json")
	platform.ServeDocument(`{"paths":{}}`)
	platform.FailList(http.StatusServiceUnavailable)

	rep := newReplacer(t, srv).Run(context.Background(), "staging")

	assert.Equal(t, replace.Success, rep.Result)
	assert.Error(t, rep.CheckErr)
	assert.Empty(t, platform.Deletes())
}

func TestRun_EachRunChecksAndFetchesOnce(t *testing.T) {
	platform, srv := storetest.Start(t, token)
	platform.ServeDocument(`{"paths":{}}`)
	r := newReplacer(t, srv)

	for i := 0; i < 3; i++ {
		assert.Equal(t, replace.Success, r.Replace(context.Background(), "staging"))
	}
	assert.Equal(t, 3, platform.ListCalls())
	assert.Equal(t, 3, platform.OriginCalls())
	// after the first run every run deletes the previous upload.
	assert.Len(t, platform.Deletes(), 2)
	assert.Len(t, platform.Registrations(), 1)
}
