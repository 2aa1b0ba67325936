package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"smart-bin-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// pushMessage is the JSON body the dashboard service worker renders.
type pushMessage struct {
	Title    string  `json:"title"`
	Body     string  `json:"body"`
	DeviceID string  `json:"device_id"`
	Fill     float64 `json:"fill_percentage"`
	URL      string  `json:"url"`
}

// WorkerPool manages a pool of workers for sending browser push alerts.
type WorkerPool struct {
	size    int
	jobs    chan Alert
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Alert, size), // Buffered channel
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case alert := <-wp.jobs:
			log.Printf("Worker %d processing bin %s", id, alert.DeviceID)
			wp.sendNotificationsForBin(ctx, alert)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a job to the worker pool.
func (wp *WorkerPool) Dispatch(alert Alert) {
	wp.jobs <- alert
}

// ErrQueueFull is returned by Notify when every worker is busy and the buffer is full.
var ErrQueueFull = errors.New("push queue full")

// Notify queues the alert without blocking the caller.
func (wp *WorkerPool) Notify(_ context.Context, alert Alert) error {
	select {
	case wp.jobs <- alert:
		return nil
	default:
		return fmt.Errorf("dropping push alert for %s: %w", alert.DeviceID, ErrQueueFull)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Alert {
	return wp.jobs
}

// sendNotificationsForBin fetches the subscriptions following a bin and notifies each.
func (wp *WorkerPool) sendNotificationsForBin(ctx context.Context, alert Alert) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_bin_mapping sbm ON sbm.endpoint = push_subscriptions.endpoint").
		Where("sbm.device_id = ?", alert.DeviceID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for bin %s: %v", alert.DeviceID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for bin %s", len(subscriptions), alert.DeviceID)

	payload, err := json.Marshal(pushMessage{
		Title:    "Bin full",
		Body:     fmt.Sprintf("Bin %s is %s%% full. Please schedule collection.", alert.DeviceID, FormatFill(alert.FillPercentage)),
		DeviceID: alert.DeviceID,
		Fill:     alert.FillPercentage,
		URL:      MapsURL(alert.Lat, alert.Lon),
	})
	if err != nil {
		log.Printf("Error encoding push payload for bin %s: %v", alert.DeviceID, err)
		return
	}

	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	// Manually construct the webpush.Subscription object
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
