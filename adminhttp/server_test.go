package adminhttp

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	log "github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/jacobwpeng/sectbattled/backup"
	"github.com/jacobwpeng/sectbattled/config"
	"github.com/jacobwpeng/sectbattled/coop"
	"github.com/jacobwpeng/sectbattled/engine"
	"github.com/jacobwpeng/sectbattled/kvclient"
	"github.com/jacobwpeng/sectbattled/persist"
	"github.com/jacobwpeng/sectbattled/types"
)

func newTestServer(t *testing.T) (*Server, *engine.State) {
	t.Helper()
	maps, err := persist.OpenOrCreateMaps(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { maps.Close() })
	state, err := engine.NewState(maps, config.DefaultBattleField(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	routine := backup.NewRoutine(maps, kvclient.NewMemory(), "unused", log.New())
	return New(state, routine, coop.NewRunner(), log.New()), state
}

func TestHandleStatusOK(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleFieldRejectsOutOfRange(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/field?x=99&y=0", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleFieldFound(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/field?x=0&y=0", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestHandlePlayerNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/player?uin=1", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleRemovePlayerRemoves(t *testing.T) {
	s, state := newTestServer(t)
	_, err := state.AddCombatant(7, types.Shaolin, 3)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/removeplayer?uin=7", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	_, ok := state.Combatant(7)
	require.False(t, ok)
}

func TestHandleForceBackupOK(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/forcebackup", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"ok"`)
}

func TestHandleForceBackupReportsBusyWhenRunnerInFlight(t *testing.T) {
	s, _ := newTestServer(t)
	started := make(chan struct{})
	release := make(chan struct{})
	go s.Runner.RunExclusive(context.Background(), func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started
	defer close(release)

	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/forcebackup", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"busy"`)
}
