// Package notification sends web push reminders to farmers: when a batch's
// predicted drying time has elapsed, and when a dried batch reaches its
// consume-by due date.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"palay-drying-backend/internal/store"
)

// Kind selects the reminder message for a job.
type Kind string

const (
	KindDryingDone Kind = "drying_done"
	KindDueDate    Kind = "due_date"
)

// Job is one queued reminder.
type Job struct {
	RecordID int64
	Kind     Kind
}

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real implementation using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers for sending reminders.
type WorkerPool struct {
	size    int
	jobs    chan Job
	store   store.Store
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, st store.Store, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, size),
		store:   st,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// SetSender overrides the sender, for tests.
func (wp *WorkerPool) SetSender(s Sender) { wp.sender = s }

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			wp.notifyForRecord(ctx, job)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a reminder for one record.
func (wp *WorkerPool) Dispatch(recordID int64, kind Kind) {
	wp.jobs <- Job{RecordID: recordID, Kind: kind}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Job {
	return wp.jobs
}

// ScheduleDryingDone queues a drying-done reminder once the predicted
// drying duration has elapsed. Pending timers are dropped on shutdown.
func (wp *WorkerPool) ScheduleDryingDone(ctx context.Context, recordID int64, after time.Duration) {
	go func() {
		timer := time.NewTimer(after)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			wp.Dispatch(recordID, KindDryingDone)
		}
	}()
}

// RunDueCheck scans for batches reaching their due date once per interval
// and dispatches a reminder for each.
func (wp *WorkerPool) RunDueCheck(ctx context.Context, interval time.Duration) {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			wp.DispatchDueBatches(ctx, time.Now().UTC())
			timer.Reset(interval)
		}
	}
}

// DispatchDueBatches queues a reminder for every record due on the given day.
func (wp *WorkerPool) DispatchDueBatches(ctx context.Context, day time.Time) {
	records, err := wp.store.RecordsDueOn(ctx, day)
	if err != nil {
		log.Printf("Error listing due batches: %v", err)
		return
	}
	for _, rec := range records {
		wp.Dispatch(rec.ID, KindDueDate)
	}
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (wp *WorkerPool) notifyForRecord(ctx context.Context, job Job) {
	rec, err := wp.store.RecordByID(ctx, job.RecordID)
	if err != nil {
		log.Printf("Error loading record %d for notification: %v", job.RecordID, err)
		return
	}
	if rec == nil {
		return
	}

	subs, err := wp.store.SubscriptionsForFarmer(ctx, rec.FarmerID)
	if err != nil {
		log.Printf("Error fetching subscriptions for farmer %d: %v", rec.FarmerID, err)
		return
	}
	if len(subs) == 0 {
		return
	}

	batch := rec.BatchName
	if batch == "" {
		batch = rec.UUID
	}
	var msg pushPayload
	switch job.Kind {
	case KindDryingDone:
		msg = pushPayload{
			Title: "Batch finished drying",
			Body:  fmt.Sprintf("Batch %s has reached its predicted drying time.", batch),
		}
	default:
		msg = pushPayload{
			Title: "Batch due for consumption",
			Body:  fmt.Sprintf("Dried batch %s has reached its consume-by date.", batch),
		}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling push payload for record %d: %v", job.RecordID, err)
		return
	}

	for _, sub := range subs {
		s := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.P256DH, Auth: sub.Auth},
		}
		resp, err := wp.sender.Send(payload, s, wp.webpush)
		if err != nil {
			log.Printf("Error sending push for record %d: %v", job.RecordID, err)
			continue
		}
		resp.Body.Close()
	}
}
