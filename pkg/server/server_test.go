package server

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/items"
	"github.com/shishobooks/folio/pkg/migrations"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	e, _ := newTestServerWithDB(t)
	return e
}

func newTestServerWithDB(t *testing.T) (*echo.Echo, *bun.DB) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	cfg := config.NewForTest()
	cfg.LibraryRoot = t.TempDir()

	e, err := newEcho(cfg, db)
	require.NoError(t, err)
	return e, db
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func do(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error.Code
}

func TestItemsRoutes(t *testing.T) {
	e := newTestServer(t)

	rec := do(t, e, http.MethodGet, "/items", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"items":[],"total":0}`, rec.Body.String())

	rec = do(t, e, http.MethodGet, "/items/42", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))

	rec = do(t, e, http.MethodPost, "/items/42/enrich", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, e, http.MethodPost, "/items/42/enrich", `{"isbn":"123"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation_error", errorCode(t, rec))
}

func TestScanAndJobRoutes(t *testing.T) {
	e := newTestServer(t)

	rec := do(t, e, http.MethodPost, "/scans", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, e, http.MethodPost, "/scans", `{"root_path":"`+t.TempDir()+`"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var job models.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, models.JobTypeScan, job.Type)
	assert.Equal(t, models.JobStatusPending, job.Status)

	rec = do(t, e, http.MethodPost, "/scans", `{"root_path":"`+t.TempDir()+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	path := "/jobs/" + strconv.Itoa(job.ID)
	rec = do(t, e, http.MethodGet, path, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, models.JobStatusCancelled, job.Status)

	rec = do(t, e, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, e, http.MethodGet, path+"/logs", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e, http.MethodGet, "/jobs?type=scan", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = do(t, e, http.MethodGet, "/scans", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOrganizeRoutes(t *testing.T) {
	e := newTestServer(t)

	rec := do(t, e, http.MethodPost, "/organize/plan", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"entries":[]`)

	rec = do(t, e, http.MethodPost, "/organize/plan", `{"template":"../{Title}.{ext}"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, e, http.MethodPost, "/organize/apply", `{"mode":"reference"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, e, http.MethodPost, "/organize/apply", `{"mode":"move"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = do(t, e, http.MethodPost, "/organize/rollback", `{"log_path":"/etc/passwd"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, e, http.MethodPost, "/organize/rollback", `{"log_path":"/library/.folio/organizer-log-1.json"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotFound(t *testing.T) {
	e := newTestServer(t)

	rec := do(t, e, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))
}

func TestFileRoutes(t *testing.T) {
	e, db := newTestServerWithDB(t)
	ctx := context.Background()
	itemService := items.NewService(db)

	rec := do(t, e, http.MethodGet, "/files/missing", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"files":[]}`, rec.Body.String())

	item := &models.Item{Title: "The Word for World Is Forest"}
	require.NoError(t, itemService.CreateItem(ctx, item))
	missing := func(name string) *models.File {
		f := &models.File{
			ItemID:     item.ID,
			Path:       filepath.Join("/gone", name),
			Filename:   name,
			Extension:  "epub",
			SHA256:     "hash-" + name,
			ModifiedAt: time.Now(),
			Status:     models.FileStatusMissing,
		}
		require.NoError(t, itemService.CreateFile(ctx, f))
		return f
	}
	relinked := missing("forest.epub")
	removed := missing("forest-copy.epub")

	rec = do(t, e, http.MethodGet, "/files/missing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "forest.epub")
	assert.Contains(t, rec.Body.String(), "forest-copy.epub")

	relinkPath := "/files/" + strconv.Itoa(relinked.ID) + "/relink"
	rec = do(t, e, http.MethodPost, relinkPath, `{"path":"forest.epub"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation_error", errorCode(t, rec))

	rec = do(t, e, http.MethodPost, relinkPath, `{"path":"/gone/elsewhere.epub"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, e, http.MethodPost, "/files/abc/relink", `{"path":"/gone/forest.epub"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	found := filepath.Join(t.TempDir(), "forest.epub")
	require.NoError(t, os.WriteFile(found, []byte("found it"), 0600))
	rec = do(t, e, http.MethodPost, relinkPath, `{"path":"`+found+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var file models.File
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &file))
	assert.Equal(t, found, file.Path)
	assert.Equal(t, models.FileStatusActive, file.Status)

	rec = do(t, e, http.MethodDelete, "/files/"+strconv.Itoa(relinked.ID), "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, e, http.MethodDelete, "/files/"+strconv.Itoa(removed.ID), "")
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, e, http.MethodGet, "/files/missing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"files":[]}`, rec.Body.String())
}

func TestCandidateRoutes(t *testing.T) {
	e, db := newTestServerWithDB(t)
	ctx := context.Background()

	rec := do(t, e, http.MethodGet, "/items/42/candidates", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, e, http.MethodGet, "/items/42/candidates?isbn=123", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, e, http.MethodPost, "/items/42/candidates/apply", `{"source":"openlibrary","title":"Rocannon's World"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	item := &models.Item{Title: "rocannons_world"}
	require.NoError(t, items.NewService(db).CreateItem(ctx, item))
	applyPath := "/items/" + strconv.Itoa(item.ID) + "/candidates/apply"

	rec = do(t, e, http.MethodPost, applyPath, `{"title":"Rocannon's World"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, e, http.MethodPost, applyPath, `{"source":"openlibrary","title":"Rocannon's World","cover_url":"not a url"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, e, http.MethodPost, applyPath, `{"source":"openlibrary","title":"Rocannon's World","authors":["Ursula K. Le Guin"],"published_year":1966}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"applied_source":"openlibrary"`)

	rec = do(t, e, http.MethodGet, "/items/"+strconv.Itoa(item.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Rocannon's World")
	assert.Contains(t, rec.Body.String(), "Ursula K. Le Guin")
}
