package handler_test

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/openwifi/scan-server/internal/config"
    "github.com/openwifi/scan-server/internal/handler"
    "github.com/openwifi/scan-server/internal/middleware"
    "github.com/openwifi/scan-server/internal/queue"
    "github.com/openwifi/scan-server/internal/repository"
    "github.com/openwifi/scan-server/internal/router"
    "github.com/openwifi/scan-server/internal/service"
    "github.com/openwifi/scan-server/internal/stats"
    "github.com/openwifi/scan-server/internal/testutil"
    "github.com/openwifi/scan-server/internal/validator"
)

const example = `{"bssid":"02:29:e9:87:78:86","ssid":"home","ts":1690000000000,"acc":12.5,"loc":{"lat":53.87,"lon":27.54}}`

type stubAuth struct{}

func (stubAuth) Authenticate(_ context.Context, token string) (string, error) {
    return "uid-" + token, nil
}

type server struct {
    e    *echo.Echo
    repo *repository.ScanResultRepo
}

func newServer(t *testing.T, policy string) server {
    t.Helper()
    db := testutil.NewSQLite(t)
    repo := repository.NewScanResultRepo(db, repository.SQLite)
    archive := repository.NewArchiveRepo(db, repository.SQLite)
    cfg := config.IngestConfig{MaxAccuracy: 100, BatchPolicy: policy, MaxBatchSize: 3, MaxBodyBytes: 1 << 16, MaxPageSize: 4}
    log := zerolog.Nop()

    ing := service.NewIngestor(repo, validator.New(nil), cfg, queue.Nop{}, "scan_results.stored", log)
    sc := stats.New(time.Hour, nil)
    stats.RegisterDefaults(sc, repo, archive)

    e := echo.New()
    router.RegisterRoutes(e, handler.Health(db))
    router.RegisterScanResults(e, &handler.ScanResultHandler{Ingestor: ing, Syncer: repo, Cfg: cfg, Log: log},
        middleware.Authenticate(stubAuth{}, false, log),
        func(next echo.HandlerFunc) echo.HandlerFunc { return next })
    router.RegisterInfo(e, &handler.InfoHandler{Version: "1.2.3", TestMode: true})
    router.RegisterStats(e, &handler.StatsHandler{Stats: sc, Log: log},
        func(next echo.HandlerFunc) echo.HandlerFunc { return next })
    return server{e: e, repo: repo}
}

func (s server) do(method, path, cid, body string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(method, path, strings.NewReader(body))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    if cid != "" {
        req.Header.Set(middleware.HeaderClientID, cid)
    }
    rec := httptest.NewRecorder()
    s.e.ServeHTTP(rec, req)
    return rec
}

func scan(bssid string, ts int64, acc string) string {
    return fmt.Sprintf(`{"bssid":%q,"ssid":"home","ts":%d,"acc":%s,"loc":{"lat":53.87,"lon":27.54}}`, bssid, ts, acc)
}

func TestPostStoresExampleOnce(t *testing.T) {
    s := newServer(t, config.BatchAtomic)

    rec := s.do(http.MethodPost, "/api/scan-results/", "c1", example)
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    var id *uint64
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &id))
    require.NotNil(t, id)

    rec = s.do(http.MethodPost, "/api/scan-results/", "c1", example)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

    rows, err := s.repo.Since(context.Background(), 0, 10, "")
    require.NoError(t, err)
    require.Len(t, rows, 1)
    assert.Equal(t, *id, rows[0].ID)
    assert.Equal(t, "c1", rows[0].ClientID)
}

func TestPostSameObservationFromAnotherClientIsStored(t *testing.T) {
    s := newServer(t, config.BatchAtomic)
    require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/scan-results/", "c1", example).Code)
    rec := s.do(http.MethodPost, "/api/scan-results/", "c2", example)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.NotEqual(t, "null", strings.TrimSpace(rec.Body.String()))
}

func TestPostRequiresClientID(t *testing.T) {
    s := newServer(t, config.BatchAtomic)
    rec := s.do(http.MethodPost, "/api/scan-results/", "", example)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostRejectsInvalidRecords(t *testing.T) {
    s := newServer(t, config.BatchAtomic)
    for _, body := range []string{
        `not json`,
        `42`,
        scan("02:29:e9:87:78:8r", 1, "1"),
        `{"bssid":"02:29:e9:87:78:86","ssid":"home","ts":1,"acc":1,"loc":{"lat":0,"lon":0},"cid":"x"}`,
        fmt.Sprintf(`{"bssid":"02:29:e9:87:78:86","ssid":"home","ts":%d,"acc":1,"loc":{"lat":0,"lon":0}}`, time.Now().Add(time.Hour).UnixMilli()),
    } {
        rec := s.do(http.MethodPost, "/api/scan-results/", "c1", body)
        assert.Equal(t, http.StatusBadRequest, rec.Code, body)
    }
    n, err := s.repo.Count(context.Background())
    require.NoError(t, err)
    assert.Zero(t, n)
}

func TestPostAccuracyBoundary(t *testing.T) {
    s := newServer(t, config.BatchAtomic)
    body := "[" + scan("02:29:e9:87:78:86", 1, "100.0") + "," + scan("02:29:e9:87:78:87", 1, "100.01") + "]"

    rec := s.do(http.MethodPost, "/api/scan-results/", "c1", body)
    require.Equal(t, http.StatusOK, rec.Code)
    var ids []*uint64
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ids))
    require.Len(t, ids, 2)
    assert.NotNil(t, ids[0])
    assert.Nil(t, ids[1])
}

func TestPostAtomicBatchReportsIndex(t *testing.T) {
    s := newServer(t, config.BatchAtomic)
    body := "[" + scan("02:29:e9:87:78:86", 1, "1") + "," + scan("bad", 1, "1") + "]"

    rec := s.do(http.MethodPost, "/api/scan-results/", "c1", body)
    require.Equal(t, http.StatusBadRequest, rec.Code)
    var resp map[string]any
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
    assert.Equal(t, "bssid", resp["field"])
    assert.EqualValues(t, 1, resp["index"])
}

func TestPostBestEffortBatch(t *testing.T) {
    s := newServer(t, config.BatchBestEffort)
    body := "[" + scan("02:29:e9:87:78:86", 1, "1") + "," + scan("bad", 1, "1") + "]"

    rec := s.do(http.MethodPost, "/api/scan-results/", "c1", body)
    require.Equal(t, http.StatusOK, rec.Code)
    var ids []*uint64
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ids))
    require.Len(t, ids, 2)
    assert.NotNil(t, ids[0])
    assert.Nil(t, ids[1])
}

func TestPostBatchTooLarge(t *testing.T) {
    s := newServer(t, config.BatchAtomic)
    parts := make([]string, 4)
    for i := range parts {
        parts[i] = scan("02:29:e9:87:78:86", int64(i+1), "1")
    }
    rec := s.do(http.MethodPost, "/api/scan-results/", "c1", "["+strings.Join(parts, ",")+"]")
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncExcludesOwnEchoesAndPages(t *testing.T) {
    s := newServer(t, config.BatchAtomic)
    for i := 1; i <= 6; i++ {
        cid := "c1"
        if i%2 == 0 {
            cid = "c2"
        }
        require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/scan-results/", cid, scan("02:29:e9:87:78:86", int64(i), "1")).Code)
    }

    rec := s.do(http.MethodGet, "/api/scan-results/0/10/", "c1", "")
    require.Equal(t, http.StatusOK, rec.Code)
    assert.NotContains(t, rec.Body.String(), `"cid"`)
    assert.NotContains(t, rec.Body.String(), `"uid"`)
    var page []map[string]any
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
    require.Len(t, page, 3)
    for _, row := range page {
        assert.EqualValues(t, 0, int64(row["ts"].(float64))%2, "only c2 rows")
    }

    // page size is capped, and the cursor walks forward without repeats
    var (
        cursor uint64
        seen   = map[uint64]bool{}
    )
    for {
        rec := s.do(http.MethodGet, fmt.Sprintf("/api/scan-results/%d/0/", cursor), "c3", "")
        require.Equal(t, http.StatusOK, rec.Code)
        var rows []struct{ ID uint64 `json:"id"` }
        require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
        if len(rows) == 0 {
            break
        }
        assert.LessOrEqual(t, len(rows), 4)
        for _, r := range rows {
            assert.Greater(t, r.ID, cursor)
            assert.False(t, seen[r.ID])
            seen[r.ID] = true
            cursor = r.ID
        }
    }
    assert.Len(t, seen, 6)
}

func TestSyncRejectsMalformedParameters(t *testing.T) {
    s := newServer(t, config.BatchAtomic)
    for _, path := range []string{"/api/scan-results/x/10/", "/api/scan-results/0/-1/", "/api/scan-results/-5/10/", "/api/scan-results/0/ten/"} {
        assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, path, "c1", "").Code, path)
    }
}

func TestInfoCheckStatsHealth(t *testing.T) {
    s := newServer(t, config.BatchAtomic)
    require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/scan-results/", "c1", example).Code)

    rec := s.do(http.MethodGet, "/api/info/", "", "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"version":"1.2.3","test_mode":true}`, rec.Body.String())

    rec = s.do(http.MethodGet, "/api/check/", "", "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Empty(t, rec.Body.String())

    rec = s.do(http.MethodGet, "/api/stats/", "", "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"scan_results":1,"bssids":1,"ssids":1,"clients":1,"archived":0}`, rec.Body.String())

    rec = s.do(http.MethodGet, "/api/stats/bssids/", "", "")
    assert.JSONEq(t, `{"name":"bssids","value":1}`, rec.Body.String())

    assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/stats/nope/", "", "").Code)
    assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", "").Code)
}

func TestPostStampsDepersonalizedUser(t *testing.T) {
    s := newServer(t, config.BatchAtomic)
    req := httptest.NewRequest(http.MethodPost, "/api/scan-results/", strings.NewReader(example))
    req.Header.Set(middleware.HeaderClientID, "c1")
    req.Header.Set(middleware.HeaderAuthToken, "tok")
    rec := httptest.NewRecorder()
    s.e.ServeHTTP(rec, req)
    require.Equal(t, http.StatusOK, rec.Code)

    rows, err := s.repo.Since(context.Background(), 0, 10, "")
    require.NoError(t, err)
    require.Len(t, rows, 1)
    assert.Equal(t, "uid-tok", rows[0].UserID)
}
