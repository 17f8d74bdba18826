// SPDX-License-Identifier: MIT
package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/apimgr/torsentry/src/config"
	"github.com/apimgr/torsentry/src/server/service/admin"
	"github.com/apimgr/torsentry/src/server/service/logging"
	"github.com/apimgr/torsentry/src/server/service/scheduler"
	"github.com/apimgr/torsentry/src/torcallback"
	"github.com/apimgr/torsentry/src/torctrl"
	"github.com/apimgr/torsentry/src/torevent"
	"github.com/apimgr/torsentry/src/torjob"
	"github.com/apimgr/torsentry/src/torkey"
	"github.com/apimgr/torsentry/src/tormanager"
)

// MigrationManager mirrors server.MigrationManager, kept separate so this
// package does not import server (which imports handler).
type MigrationManager interface {
	GetMigrationStatus() ([]map[string]interface{}, error)
	RunMigrations() error
	RollbackMigration() error
}

type authCtxKey struct{}

// AdminAPI is the REST+SSE admin surface over a tormanager.Manager: daemon
// status and control, hidden-service key management, scheduler inspection,
// and an event stream, guarded by the admin account the teacher's admin
// service already manages.
type AdminAPI struct {
	cfg          *config.Config
	torMgr       *tormanager.Manager
	adminSvc     *admin.Service
	migrationMgr MigrationManager
	scheduler    *scheduler.Scheduler
	logger       *logging.AppLogger
	hsDir        string
}

// NewAdminAPI builds the admin API handler set.
func NewAdminAPI(cfg *config.Config, torMgr *tormanager.Manager, adminSvc *admin.Service, migrationMgr MigrationManager, sched *scheduler.Scheduler, logger *logging.AppLogger) *AdminAPI {
	return &AdminAPI{
		cfg:          cfg,
		torMgr:       torMgr,
		adminSvc:     adminSvc,
		migrationMgr: migrationMgr,
		scheduler:    sched,
		logger:       logger,
		hsDir:        filepath.Join(cfg.Tor.DataDir, "hidden-services"),
	}
}

// awaitJob blocks until j reaches a terminal state or timeout elapses,
// returning the response on success.
func awaitJob[T any](j *torjob.Job[T], timeout time.Duration) (T, error) {
	done := make(chan struct{})
	j.InvokeOnCompletion(torcallback.NewExecutable(func() { close(done) }))
	select {
	case <-done:
		if resp, ok := j.Response(); ok {
			return resp, nil
		}
		if cause := j.CancellationCause(); cause != nil {
			var zero T
			return zero, cause
		}
		var zero T
		return zero, fmt.Errorf("job %s did not succeed (state %s)", j.Name(), j.State())
	case <-time.After(timeout):
		var zero T
		return zero, fmt.Errorf("job %s timed out after %s", j.Name(), timeout)
	}
}

// Healthz reports whether the admin API is reachable.
func (a *AdminAPI) Healthz(w http.ResponseWriter, r *http.Request) {
	SendOK(w, map[string]interface{}{"status": "ok"})
}

// NotFound is the router's catch-all 404 handler.
func (a *AdminAPI) NotFound(w http.ResponseWriter, r *http.Request) {
	SendError(w, CodeNotFound, "no such resource")
}

// MetricsHandler exposes the Prometheus registry.
func (a *AdminAPI) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Setup creates the primary admin account using the first-run setup token.
func (a *AdminAPI) Setup(w http.ResponseWriter, r *http.Request) {
	if !a.adminSvc.IsFirstRun() {
		SendError(w, CodeForbidden, "setup already completed")
		return
	}

	var req struct {
		Token    string `json:"token"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendError(w, CodeBadRequest, "invalid request body")
		return
	}

	acct, err := a.adminSvc.CreateAdminWithSetupToken(req.Token, req.Username, req.Password)
	if err != nil {
		SendError(w, CodeBadRequest, err.Error())
		return
	}

	a.logger.Audit("admin_setup", req.Username, "admin", map[string]interface{}{"admin_id": acct.ID})
	SendOK(w, map[string]interface{}{"username": acct.Username})
}

// Login authenticates an admin and issues an API token as a secure cookie.
func (a *AdminAPI) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendError(w, CodeBadRequest, "invalid request body")
		return
	}

	acct, err := a.adminSvc.Authenticate(req.Username, req.Password)
	if err != nil {
		a.logger.Security("login_failed", r.RemoteAddr, map[string]interface{}{"username": req.Username})
		SendError(w, CodeUnauthorized, "invalid credentials")
		return
	}

	token, err := a.adminSvc.CreateAPIToken(acct.ID, "session", "admin")
	if err != nil {
		SendError(w, CodeServerError, "could not create session")
		return
	}

	http.SetCookie(w, NewSecureCookieStrict("torsentry_session", token, "/", 86400, a.cfg.Server.SSL.Enabled))
	a.logger.Audit("login", req.Username, "admin", nil)
	// Browsers get the cookie; non-browser clients (the CLI) need the token
	// in the body since they don't keep a cookie jar across invocations.
	SendOK(w, map[string]interface{}{"username": acct.Username, "token": token})
}

// AuthMiddleware requires a valid API token, from either the Authorization
// header or the session cookie set by Login.
func (a *AdminAPI) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			if c, err := r.Cookie("torsentry_session"); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			SendError(w, CodeUnauthorized, "authentication required")
			return
		}

		adminID, err := a.adminSvc.ValidateAPIToken(token)
		if err != nil {
			SendError(w, CodeUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), authCtxKey{}, adminID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && subtle.ConstantTimeCompare([]byte(h[:len(prefix)]), []byte(prefix)) == 1 {
		return h[len(prefix):]
	}
	return ""
}

// TorStatus reports bootstrap percentage and basic GETINFO state.
func (a *AdminAPI) TorStatus(w http.ResponseWriter, r *http.Request) {
	percent, err := awaitJob(a.torMgr.BootstrapPercent(), 10*time.Second)
	if err != nil {
		SendError(w, CodeServerError, err.Error())
		return
	}
	info, err := awaitJob(a.torMgr.GetInfo("version", "status/circuit-established", "network-liveness"), 10*time.Second)
	if err != nil {
		SendError(w, CodeServerError, err.Error())
		return
	}
	SendOK(w, map[string]interface{}{
		"bootstrap_percent": percent,
		"info":              info,
	})
}

// TorSignal sends a control-port signal (NEWNYM, RELOAD, SHUTDOWN, ...).
func (a *AdminAPI) TorSignal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Signal string `json:"signal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Signal == "" {
		SendError(w, CodeBadRequest, "signal is required")
		return
	}
	if _, err := awaitJob(a.torMgr.Signal(req.Signal), 10*time.Second); err != nil {
		SendError(w, CodeServerError, err.Error())
		return
	}
	a.logger.Audit("tor_signal", "", "tor", map[string]interface{}{"signal": req.Signal})
	SendOK(w, map[string]interface{}{"signal": req.Signal})
}

// TorInfo proxies an arbitrary GETINFO lookup.
func (a *AdminAPI) TorInfo(w http.ResponseWriter, r *http.Request) {
	keys := r.URL.Query()["key"]
	if len(keys) == 0 {
		SendError(w, CodeBadRequest, "at least one key query parameter is required")
		return
	}
	info, err := awaitJob(a.torMgr.GetInfo(keys...), 10*time.Second)
	if err != nil {
		SendError(w, CodeServerError, err.Error())
		return
	}
	SendOK(w, info)
}

// EventStream streams the manager's runtime (bootstrap/log) and control
// events to the client as server-sent events.
func (a *AdminAPI) EventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		SendError(w, CodeServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	events := make(chan []byte, 32)
	tag := fmt.Sprintf("sse-%p", r)

	a.torMgr.RuntimeEvents().Subscribe(torevent.NewObserver(tormanager.EventBootstrap, tag, nil,
		torcallback.NewOnEvent(func(p tormanager.RuntimePayload) {
			if data, err := json.Marshal(map[string]interface{}{"type": "runtime", "payload": p}); err == nil {
				select {
				case events <- data:
				default:
				}
			}
		})))
	a.torMgr.TorEvents().Subscribe(torevent.NewObserver(tormanager.EventTorControl, tag, nil,
		torcallback.NewOnEvent(func(ev torctrl.Event) {
			if data, err := json.Marshal(map[string]interface{}{"type": "control", "payload": ev}); err == nil {
				select {
				case events <- data:
				default:
				}
			}
		})))
	defer a.torMgr.UnsubscribeAllByTag(tag)

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-events:
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-time.After(30 * time.Second):
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// HiddenServicesList lists the identities stored under the hidden-service
// key directory, along with each one's onion address.
func (a *AdminAPI) HiddenServicesList(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(a.hsDir)
	if err != nil {
		if os.IsNotExist(err) {
			SendOK(w, []map[string]interface{}{})
			return
		}
		SendError(w, CodeServerError, err.Error())
		return
	}
	services := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		kp, err := torkey.LoadKeyPair(filepath.Join(a.hsDir, e.Name()))
		if err != nil {
			continue
		}
		addr, err := kp.OnionAddress()
		if err != nil {
			continue
		}
		services = append(services, map[string]interface{}{"name": e.Name(), "address": addr.String()})
	}
	SendOK(w, services)
}

// HiddenServiceCreate generates a fresh ed25519 identity for name.
func (a *AdminAPI) HiddenServiceCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		SendError(w, CodeBadRequest, "name is required")
		return
	}

	kp, err := torkey.GenerateKeyPair()
	if err != nil {
		SendError(w, CodeServerError, err.Error())
		return
	}
	defer kp.Destroy()

	dir := filepath.Join(a.hsDir, req.Name)
	if err := torkey.SaveKeyPair(dir, kp); err != nil {
		SendError(w, CodeServerError, err.Error())
		return
	}

	addr, err := kp.OnionAddress()
	if err != nil {
		SendError(w, CodeServerError, err.Error())
		return
	}
	a.logger.Audit("hidden_service_create", "", req.Name, map[string]interface{}{"address": addr.String()})
	SendOK(w, map[string]interface{}{"name": req.Name, "address": addr.String()})
}

// HiddenServiceGet reports the onion address for an existing identity.
func (a *AdminAPI) HiddenServiceGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	kp, err := torkey.LoadKeyPair(filepath.Join(a.hsDir, name))
	if err != nil {
		SendError(w, CodeNotFound, "no such hidden service")
		return
	}
	addr, err := kp.OnionAddress()
	if err != nil {
		SendError(w, CodeServerError, err.Error())
		return
	}
	SendOK(w, map[string]interface{}{"name": name, "address": addr.String()})
}

// HiddenServiceDelete removes a stored identity's key directory.
func (a *AdminAPI) HiddenServiceDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	dir := filepath.Join(a.hsDir, name)
	if _, err := os.Stat(dir); err != nil {
		SendError(w, CodeNotFound, "no such hidden service")
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		SendError(w, CodeServerError, err.Error())
		return
	}
	a.logger.Audit("hidden_service_delete", "", name, nil)
	SendOK(w, map[string]interface{}{"deleted": name})
}

// HiddenServiceExport returns the private descriptor for backup, the way
// torkey.SaveKeyPair itself backs up files before overwriting them.
func (a *AdminAPI) HiddenServiceExport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	kp, err := torkey.LoadKeyPair(filepath.Join(a.hsDir, name))
	if err != nil {
		SendError(w, CodeNotFound, "no such hidden service")
		return
	}
	descriptor, err := kp.PrivateDescriptor()
	if err != nil {
		SendError(w, CodeServerError, err.Error())
		return
	}
	a.logger.Audit("hidden_service_export", "", name, nil)
	SendOK(w, map[string]interface{}{"name": name, "private_descriptor": descriptor})
}

// HiddenServiceImport checks that name and private_descriptor are present
// and then answers 400: raw descriptors are not imported and nothing is
// written to the key directory.
func (a *AdminAPI) HiddenServiceImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name              string `json:"name"`
		PrivateDescriptor string `json:"private_descriptor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.PrivateDescriptor == "" {
		SendError(w, CodeBadRequest, "name and private_descriptor are required")
		return
	}
	SendError(w, CodeBadRequest, "importing raw descriptors is not yet supported; use the file-based hs_ed25519_secret_key layout under the data directory")
}

// MigrationsStatus reports the database schema's applied migrations.
func (a *AdminAPI) MigrationsStatus(w http.ResponseWriter, r *http.Request) {
	status, err := a.migrationMgr.GetMigrationStatus()
	if err != nil {
		SendError(w, CodeServerError, err.Error())
		return
	}
	SendOK(w, status)
}

// SchedulerTasks lists the registered scheduled tasks.
func (a *AdminAPI) SchedulerTasks(w http.ResponseWriter, r *http.Request) {
	SendOK(w, a.scheduler.ListTasks())
}

// SchedulerRunTask runs a task immediately, out of schedule.
func (a *AdminAPI) SchedulerRunTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.scheduler.RunTaskNow(id); err != nil {
		SendError(w, CodeBadRequest, err.Error())
		return
	}
	SendOK(w, map[string]interface{}{"ran": id})
}

// SchedulerEnableTask re-enables a disabled task.
func (a *AdminAPI) SchedulerEnableTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.scheduler.EnableTask(id); err != nil {
		SendError(w, CodeBadRequest, err.Error())
		return
	}
	SendOK(w, map[string]interface{}{"enabled": id})
}

// SchedulerDisableTask disables a task without unregistering it.
func (a *AdminAPI) SchedulerDisableTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.scheduler.DisableTask(id); err != nil {
		SendError(w, CodeBadRequest, err.Error())
		return
	}
	SendOK(w, map[string]interface{}{"disabled": id})
}

// APITokenCreate issues a new named API token for the authenticated admin.
func (a *AdminAPI) APITokenCreate(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value(authCtxKey{}).(int64)
	var req struct {
		Name        string `json:"name"`
		Permissions string `json:"permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		SendError(w, CodeBadRequest, "name is required")
		return
	}
	token, err := a.adminSvc.CreateAPIToken(adminID, req.Name, req.Permissions)
	if err != nil {
		SendError(w, CodeServerError, err.Error())
		return
	}
	SendOK(w, map[string]interface{}{"token": token})
}

// APITokenRevoke does not read the {id} path parameter: it calls
// RegenerateAPIToken, which deletes every API token of the authenticated
// admin and issues one replacement whose value is not returned.
func (a *AdminAPI) APITokenRevoke(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value(authCtxKey{}).(int64)
	if _, err := a.adminSvc.RegenerateAPIToken(adminID); err != nil {
		SendError(w, CodeServerError, err.Error())
		return
	}
	SendOK(w, map[string]interface{}{"revoked": true})
}
