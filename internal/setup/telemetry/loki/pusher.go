package loki

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robalyx/toxguard/internal/setup/config"
)

// ErrUnexpectedStatusCode is returned when Loki responds with an unexpected status code.
var ErrUnexpectedStatusCode = errors.New("unexpected status code from Loki")

const (
	defaultBatchMaxSize = 100
	defaultBatchMaxWait = 5 * time.Second
	pushPath            = "/loki/api/v1/push"
)

// Pusher batches log lines and sends them to Loki.
// Entries are dropped rather than blocking the logger when the queue is full.
type Pusher struct {
	labels       map[string]string
	username     string
	password     string
	pushURL      string
	batchMaxSize int
	batchMaxWait time.Duration
	client       *http.Client
	cancel       context.CancelFunc
	quit         chan struct{}
	entries      chan logEntry
	batch        []streamValue
	wg           sync.WaitGroup
	stopOnce     sync.Once
}

// NewPusher creates a pusher and starts its send loop.
func NewPusher(ctx context.Context, cfg config.Loki) *Pusher {
	batchMaxSize := cfg.BatchMaxSize
	if batchMaxSize <= 0 {
		batchMaxSize = defaultBatchMaxSize
	}

	batchMaxWait := time.Duration(cfg.BatchMaxWaitMS) * time.Millisecond
	if batchMaxWait <= 0 {
		batchMaxWait = defaultBatchMaxWait
	}

	ctx, cancel := context.WithCancel(ctx)

	p := &Pusher{
		labels:       cfg.Labels,
		username:     cfg.Username,
		password:     cfg.Password,
		pushURL:      cfg.URL + pushPath,
		batchMaxSize: batchMaxSize,
		batchMaxWait: batchMaxWait,
		client:       &http.Client{Timeout: 10 * time.Second},
		cancel:       cancel,
		quit:         make(chan struct{}),
		entries:      make(chan logEntry, batchMaxSize*2),
		batch:        make([]streamValue, 0, batchMaxSize),
	}

	p.wg.Add(1)

	go p.run(ctx)

	return p
}

// AddEntry queues a log line.
func (p *Pusher) AddEntry(entry logEntry) {
	select {
	case p.entries <- entry:
	default:
		slog.Warn("Loki entry channel full, dropping log entry")
	}
}

// Stop sends the queued lines and stops the send loop.
func (p *Pusher) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
		p.wg.Wait()
		p.cancel()
	})
}

// run collects entries and sends a batch when it is full or the wait elapses.
func (p *Pusher) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.batchMaxWait)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			p.drain()
			p.flush(ctx)

			return
		case entry := <-p.entries:
			p.batch = append(p.batch, newStreamValue(entry))
			if len(p.batch) >= p.batchMaxSize {
				p.flush(ctx)
			}
		case <-ticker.C:
			p.flush(ctx)
		}
	}
}

// drain moves every queued entry into the batch.
func (p *Pusher) drain() {
	for {
		select {
		case entry := <-p.entries:
			p.batch = append(p.batch, newStreamValue(entry))
		default:
			return
		}
	}
}

// flush sends the current batch and resets it.
func (p *Pusher) flush(ctx context.Context) {
	if len(p.batch) == 0 {
		return
	}

	if err := p.send(ctx, p.batch); err != nil {
		slog.Error("Failed to send Loki batch", slog.Any("error", err), slog.Int("size", len(p.batch)))
	}

	p.batch = p.batch[:0]
}

// send transmits one gzip compressed push request.
func (p *Pusher) send(ctx context.Context, values []streamValue) error {
	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)

	request := pushRequest{Streams: []stream{{Stream: p.labels, Values: values}}}
	if err := sonic.ConfigDefault.NewEncoder(gz).Encode(request); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to compress: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.pushURL, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")

	if p.username != "" && p.password != "" {
		req.SetBasicAuth(p.username, p.password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	return nil
}

func newStreamValue(entry logEntry) streamValue {
	return streamValue{strconv.FormatInt(entry.timestamp.UnixNano(), 10), entry.line}
}
