package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"short-drama-service/internal/queue"
)

// Notification types.
const (
	NotifyGenerationComplete = "generation_complete"
	NotifyGenerationFailed   = "generation_failed"
)

// QueueEventsChannel is the pub/sub channel task state changes are published on.
const QueueEventsChannel = "queue_events"

const emailPrefKeyPrefix = "notify:email:"

// PreferenceStore keeps the notification email of each user.
type PreferenceStore interface {
	EmailFor(userID string) (string, error)
	SetEmail(userID, email string) error
}

// MemoryPreferences is a PreferenceStore kept in process memory.
type MemoryPreferences struct {
	mu     sync.RWMutex
	emails map[string]string
}

func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{emails: make(map[string]string)}
}

func (m *MemoryPreferences) EmailFor(userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.emails[userID], nil
}

func (m *MemoryPreferences) SetEmail(userID, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails[userID] = email
	return nil
}

// KeyValue is the subset of the Redis client the preference store uses.
type KeyValue interface {
	Get(key string) (string, error)
	Set(key string, value string, expiration time.Duration) error
}

// RedisPreferences stores preferences under notify:email:<userId> without expiry.
type RedisPreferences struct {
	kv KeyValue
}

func NewRedisPreferences(kv KeyValue) *RedisPreferences {
	return &RedisPreferences{kv: kv}
}

func (r *RedisPreferences) EmailFor(userID string) (string, error) {
	email, err := r.kv.Get(emailPrefKeyPrefix + userID)
	return email, errors.Wrap(err, "read email preference")
}

func (r *RedisPreferences) SetEmail(userID, email string) error {
	return errors.Wrap(r.kv.Set(emailPrefKeyPrefix+userID, email, 0), "store email preference")
}

// Publisher publishes a message on a pub/sub channel.
type Publisher interface {
	Publish(channel string, message string) error
}

// Mailer delivers a notification email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes emails to the log instead of sending them.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, body string) error {
	log.Printf("[EMAIL] To: %s", to)
	log.Printf("[EMAIL] Subject: %s", subject)
	log.Printf("[EMAIL] Body: %s", body)
	return nil
}

// Notification is a request to tell a user about a finished task. Email
// overrides the stored preference.
type Notification struct {
	Type    string                 `json:"type"`
	TaskID  string                 `json:"taskId"`
	Email   string                 `json:"email,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type NotifyResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type NotificationService struct {
	prefs  PreferenceStore
	mailer Mailer
	events Publisher
}

// NewNotificationService wires the service. events may be nil when no broker is configured.
func NewNotificationService(prefs PreferenceStore, mailer Mailer, events Publisher) *NotificationService {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &NotificationService{prefs: prefs, mailer: mailer, events: events}
}

// SetEmail stores the address notifications for userID are sent to.
func (s *NotificationService) SetEmail(userID, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("Missing email")
	}
	return s.prefs.SetEmail(userID, email)
}

// Notify sends n to the given or stored address. A user without an address is
// not an error; the result says so.
func (s *NotificationService) Notify(ctx context.Context, userID string, n Notification) (NotifyResult, error) {
	if n.Type == "" || n.TaskID == "" {
		return NotifyResult{}, invalid("Missing required fields")
	}
	if n.Type != NotifyGenerationComplete && n.Type != NotifyGenerationFailed {
		return NotifyResult{}, invalid("Invalid notification type")
	}

	email := strings.TrimSpace(n.Email)
	if email == "" {
		stored, err := s.prefs.EmailFor(userID)
		if err != nil {
			return NotifyResult{}, err
		}
		email = stored
	}
	if email == "" {
		log.Printf("[NOTIFY] No email configured, skipping notification")
		return NotifyResult{Success: true, Message: "No email configured"}, nil
	}

	subject, body := composeNotification(n)
	if err := s.mailer.Send(ctx, email, subject, body); err != nil {
		log.Printf("[NOTIFY] Error sending notification for task %s: %v", n.TaskID, err)
		return NotifyResult{Success: false, Message: "Failed to send"}, nil
	}
	return NotifyResult{Success: true, Message: "Notification sent"}, nil
}

func composeNotification(n Notification) (subject, body string) {
	if n.Type == NotifyGenerationFailed {
		reason, _ := n.Details["error"].(string)
		if reason == "" {
			reason = "Unknown error"
		}
		return "短劇工廠 - 生成失敗",
			fmt.Sprintf("您的 AI 生成任務失敗了。\n\n任務 ID: %s\n錯誤詳情: %s", n.TaskID, reason)
	}
	details, err := json.MarshalIndent(n.Details, "", "  ")
	if err != nil {
		details = []byte("{}")
	}
	return "短劇工廠 - 生成完成",
		fmt.Sprintf("您的 AI 生成任務已完成！\n\n任務 ID: %s\n詳情: %s", n.TaskID, details)
}

type queueEvent struct {
	TaskID string       `json:"taskId"`
	Type   string       `json:"type"`
	UserID string       `json:"userId"`
	Status queue.Status `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// TaskFinished publishes the task's terminal state and notifies its owner when
// they stored an email. It runs on the sweeper goroutine and never fails it.
func (s *NotificationService) TaskFinished(task queue.Task, _ time.Duration) {
	if s.events != nil {
		msg, _ := json.Marshal(queueEvent{
			TaskID: task.ID,
			Type:   task.Type,
			UserID: task.UserID,
			Status: task.Status,
			Error:  task.Error,
		})
		if err := s.events.Publish(QueueEventsChannel, string(msg)); err != nil {
			log.Printf("[NOTIFY] Error publishing queue event: %v", err)
		}
	}

	email, err := s.prefs.EmailFor(task.UserID)
	if err != nil {
		log.Printf("[NOTIFY] Error reading email preference: %v", err)
		return
	}
	if email == "" {
		return
	}

	n := Notification{Type: NotifyGenerationComplete, TaskID: task.ID, Email: email, Details: task.Result}
	if task.Status == queue.StatusFailed {
		n.Type = NotifyGenerationFailed
		n.Details = map[string]interface{}{"error": task.Error}
	}
	if _, err := s.Notify(context.Background(), task.UserID, n); err != nil {
		log.Printf("[NOTIFY] Error notifying task %s: %v", task.ID, err)
	}
}
