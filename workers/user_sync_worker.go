package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"quiz-duel-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// remoteProfile matches the JSON shape of the identity service's profile feed.
type remoteProfile struct {
	ExternalID string    `json:"external_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type profileChangesResponse struct {
	Users []remoteProfile `json:"users"`
}

// DuelUserSyncWorker mirrors usernames from the identity service into the
// local duel_users snapshot. The duel core degrades to placeholder names when
// this worker is disabled or the service is down.
type DuelUserSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewDuelUserSyncWorker(db *gorm.DB, baseURL, endpointPath, serviceToken string) *DuelUserSyncWorker {
	return &DuelUserSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *DuelUserSyncWorker) Start(ctx context.Context) {
	log.Println("Starting duel user sync worker (identity service → duel_users)")
	go w.run(ctx)
}

func (w *DuelUserSyncWorker) run(ctx context.Context) {
	// Initial backfill from the beginning of time.
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("initial user sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.lastSyncTime()); err != nil {
				log.Printf("user sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("Duel user sync worker stopped")
			return
		}
	}
}

// lastSyncTime is the newest updated_at in the local snapshot, or epoch.
func (w *DuelUserSyncWorker) lastSyncTime() time.Time {
	var last time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM duel_users WHERE deleted_at IS NULL").Scan(&last).Error
	if err != nil || last.IsZero() {
		return time.Unix(0, 0)
	}
	return last
}

func (w *DuelUserSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid identity service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build sync request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity service request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("identity service returned %d: %s", resp.StatusCode, string(body))
	}

	var changes profileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&changes); err != nil {
		return fmt.Errorf("failed to decode identity service response: %w", err)
	}
	if len(changes.Users) == 0 {
		return nil
	}

	var upserted, failed int
	for _, remote := range changes.Users {
		local := models.DuelUser{
			ExternalUserID: remote.ExternalID,
			Username:       remote.Username,
			Email:          remote.Email,
			AvatarURL:      remote.AvatarURL,
			CreatedAt:      remote.CreatedAt,
			UpdatedAt:      remote.UpdatedAt,
		}
		err := w.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "email", "avatar_url", "updated_at",
			}),
		}).Create(&local).Error
		if err != nil {
			failed++
			log.Printf("failed to upsert duel_user (external_id=%q): %v", remote.ExternalID, err)
		} else {
			upserted++
		}
	}

	log.Printf("Synced %d user(s) (%d upserted, %d failed)", len(changes.Users), upserted, failed)
	return nil
}
