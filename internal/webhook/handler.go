package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dferrero/diffscope/internal/db"
	"github.com/dferrero/diffscope/internal/logging"
	"github.com/dferrero/diffscope/internal/metrics"
	"github.com/dferrero/diffscope/internal/queue"
)

const (
	headerSignature = "X-Hub-Signature-256"
	headerEvent     = "X-GitHub-Event"
	headerDelivery  = "X-GitHub-Delivery"
)

// EventStore is the persistence surface the gateway needs.
type EventStore interface {
	HasDelivery(ctx context.Context, deliveryID string) (bool, error)
	StoreWebhookEvent(ctx context.Context, event *db.WebhookEvent) error
	MarkEventProcessed(ctx context.Context, deliveryID, status string) error
}

// Enqueuer hands validated work to the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, req queue.EnqueueRequest) (int64, error)
}

// Gateway terminates GitHub webhook deliveries: signature verification,
// delivery-id dedup, event classification and queue fan-out.
type Gateway struct {
	secret  string
	store   EventStore
	queue   Enqueuer
	metrics *metrics.Metrics
	log     logging.Logger
}

func NewGateway(secret string, store EventStore, enqueuer Enqueuer, m *metrics.Metrics, log logging.Logger) *Gateway {
	return &Gateway{secret: secret, store: store, queue: enqueuer, metrics: m, log: log.WithName("webhook")}
}

// Register wires both concrete endpoint bindings onto the mux.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/github", g.Handle)
	mux.HandleFunc("POST /webhook", g.Handle)
}

type response struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Enqueued int    `json:"enqueued,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// Handle processes one delivery. The body is read once as raw bytes before
// any parsing because the signature covers the exact byte sequence.
func (g *Gateway) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Message: "unreadable body"})
		return
	}

	signature := r.Header.Get(headerSignature)
	eventHeader := r.Header.Get(headerEvent)
	deliveryID := r.Header.Get(headerDelivery)
	if signature == "" || eventHeader == "" || deliveryID == "" || g.secret == "" {
		g.count(eventHeader, "rejected")
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Message: "missing required headers"})
		return
	}

	if !VerifySignature(payload, signature, g.secret) {
		g.count(eventHeader, "unauthorized")
		writeJSON(w, http.StatusUnauthorized, response{Status: "error", Message: "invalid signature"})
		return
	}

	eventType, supported := ParseEventType(eventHeader)
	if !supported {
		g.log.Debug("dropping unsupported event type", "event", eventHeader, "delivery", deliveryID)
		g.count(eventHeader, "dropped")
		writeJSON(w, http.StatusOK, response{Status: "ignored", Message: "unsupported event type"})
		return
	}

	// Cheap probe before the typed decode; a payload without repository
	// info is rejected without touching the store.
	repoID := gjson.GetBytes(payload, "repository.full_name").String()
	if repoID == "" {
		g.count(eventHeader, "rejected")
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Message: "missing repository info"})
		return
	}

	// GitHub delivers at least once; a duplicate delivery id short-circuits
	// so redelivery cannot double-enqueue.
	seen, err := g.store.HasDelivery(ctx, deliveryID)
	if err != nil {
		g.internalError(w, eventHeader, err, "delivery lookup failed")
		return
	}
	if seen {
		g.log.Debug("duplicate delivery", "delivery", deliveryID)
		g.count(eventHeader, "duplicate")
		writeJSON(w, http.StatusOK, response{Status: "duplicate"})
		return
	}

	event := &db.WebhookEvent{
		DeliveryID: deliveryID,
		EventType:  string(eventType),
		RepoID:     repoID,
		EventID:    gjson.GetBytes(payload, "head_commit.id").String(),
		RawPayload: payload,
	}
	if err := g.store.StoreWebhookEvent(ctx, event); err != nil {
		g.internalError(w, eventHeader, err, "store event failed")
		return
	}

	enqueued, err := g.route(ctx, eventType, repoID, payload)
	if err != nil {
		g.internalError(w, eventHeader, err, "routing failed")
		return
	}

	status := "ignored"
	if enqueued > 0 {
		status = "enqueued"
	}
	if err := g.store.MarkEventProcessed(ctx, deliveryID, status); err != nil {
		g.internalError(w, eventHeader, err, "mark processed failed")
		return
	}

	g.count(eventHeader, status)
	writeJSON(w, http.StatusOK, response{Status: "ok", Enqueued: enqueued})
}

// route fans a classified event out into queue items. Push events enqueue
// one commit item per commit at normal priority; pull_request events with an
// ingestion-worthy action enqueue one high-priority item. Reviews and
// comments are stored for audit but produce no work.
func (g *Gateway) route(ctx context.Context, eventType EventType, repoID string, payload []byte) (int, error) {
	switch eventType {
	case EventPush:
		push, err := decodePush(payload)
		if err != nil {
			return 0, err
		}
		enqueued := 0
		for _, commit := range push.Commits {
			if commit.ID == "" {
				continue
			}
			_, err := g.queue.Enqueue(ctx, queue.EnqueueRequest{
				RepoID:     repoID,
				TargetType: queue.TargetCommit,
				TargetID:   commit.ID,
				Priority:   queue.PriorityNormal,
				Metadata:   map[string]string{"ref": push.Ref, "message": firstLine(commit.Message)},
			})
			if err != nil {
				return enqueued, err
			}
			enqueued++
		}
		return enqueued, nil

	case EventPullRequest:
		pr, err := decodePullRequest(payload)
		if err != nil {
			return 0, err
		}
		if !ingestedPRActions[pr.Action] {
			g.log.Debug("dropping pull_request action", "action", pr.Action, "repo", repoID, "number", pr.Number)
			return 0, nil
		}
		_, err = g.queue.Enqueue(ctx, queue.EnqueueRequest{
			RepoID:     repoID,
			TargetType: queue.TargetPullRequest,
			TargetID:   strconv.Itoa(pr.Number),
			Priority:   queue.PriorityHigh,
			Metadata:   map[string]string{"action": pr.Action, "title": pr.PullRequest.Title, "head_sha": pr.PullRequest.Head.SHA},
		})
		if err != nil {
			return 0, err
		}
		return 1, nil

	default:
		// Reviews and comments are kept for the audit trail only.
		return 0, nil
	}
}

func (g *Gateway) internalError(w http.ResponseWriter, eventHeader string, err error, msg string) {
	g.log.Error(err, msg)
	g.count(eventHeader, "error")
	writeJSON(w, http.StatusInternalServerError, response{Status: "error", Message: "internal error"})
}

func (g *Gateway) count(eventType, outcome string) {
	if g.metrics != nil {
		g.metrics.WebhookDeliveries.WithLabelValues(eventType, outcome).Inc()
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
