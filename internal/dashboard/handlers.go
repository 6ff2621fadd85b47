package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"sort"
	"time"

	"github.com/user/release-tracker/internal/logger"
	"github.com/user/release-tracker/internal/tracker"
)

//go:embed templates/index.html
var templateFS embed.FS

const (
	testMessage         = "Testing testing 1, 2, 3"
	recentNotifications = 20
)

type Notifier interface {
	Enabled() bool
	Notify(ctx context.Context, text string) error
}

type History interface {
	Recent(ctx context.Context, limit int) ([]tracker.Notification, error)
}

type Handlers struct {
	store    *tracker.Store
	notifier Notifier
	history  History
	refresh  time.Duration
	now      func() time.Time
	tmpl     *template.Template
}

func NewHandlers(store *tracker.Store, notifier Notifier, history History, refresh time.Duration) *Handlers {
	if refresh <= 0 {
		refresh = 10 * time.Minute
	}

	h := &Handlers{
		store:    store,
		notifier: notifier,
		history:  history,
		refresh:  refresh,
		now:      time.Now,
	}
	h.tmpl = template.Must(template.New("index.html").Funcs(template.FuncMap{
		"prettyDate": PrettyDate,
		"released":   func(t time.Time) string { return DateWithAge(t, h.now()) },
		"shortSHA":   shortSHA,
		"firstLine":  firstLine,
	}).ParseFS(templateFS, "templates/index.html"))
	return h
}

type pageData struct {
	Ready          bool
	Latest         []tracker.Release
	Lineages       []tracker.LineageDiffs
	GeneratedAt    time.Time
	RefreshSeconds int
	Countdown      string
}

func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := pageData{
		RefreshSeconds: int(h.refresh.Seconds()),
		Countdown:      countdown(h.refresh),
	}
	if snap := h.store.Get(); snap != nil {
		data.Ready = true
		data.Lineages = snap.Ordered()
		data.GeneratedAt = snap.GeneratedAt
		for _, rel := range snap.Latest {
			data.Latest = append(data.Latest, rel)
		}
		sort.Slice(data.Latest, func(i, j int) bool { return data.Latest[i].Repo < data.Latest[j].Repo })
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.Execute(w, data); err != nil {
		logger.Error().Err(err).Msg("Failed to render dashboard")
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) TestNotify(w http.ResponseWriter, r *http.Request) {
	if h.notifier == nil || !h.notifier.Enabled() {
		http.Error(w, "Missing required configuration", http.StatusBadRequest)
		return
	}

	if err := h.notifier.Notify(r.Context(), testMessage); err != nil {
		logger.Error().Err(err).Msg("Failed to send test notification")
		http.Error(w, "Failed to send test notification", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Get()
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, snap)
}

type notificationView struct {
	Repo        string    `json:"repo"`
	PreviousTag string    `json:"previous_tag"`
	Tag         string    `json:"tag"`
	Status      string    `json:"status"`
	At          time.Time `json:"at"`
}

func (h *Handlers) Notifications(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "Notification history is not configured", http.StatusNotFound)
		return
	}

	entries, err := h.history.Recent(r.Context(), recentNotifications)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list notifications")
		http.Error(w, "Failed to list notifications", http.StatusInternalServerError)
		return
	}

	views := make([]notificationView, 0, len(entries))
	for _, e := range entries {
		views = append(views, notificationView{
			Repo:        e.Repo,
			PreviousTag: e.PreviousTag,
			Tag:         e.Tag,
			Status:      e.Status,
			At:          e.At,
		})
	}
	respondJSON(w, views)
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}
