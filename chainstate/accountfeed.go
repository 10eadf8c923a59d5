package chainstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
)

// Reconnection pacing, mirroring the jsonrpc client's backoff schedule.
const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second
)

// AccountUpdateFrame is one account-write notification as received over the
// feed's websocket transport.
type AccountUpdateFrame struct {
	Pubkey       string `json:"pubkey"`
	Slot         uint64 `json:"slot"`
	WriteVersion uint64 `json:"writeVersion"`
	Owner        string `json:"owner"`
	Lamports     uint64 `json:"lamports"`
	Data         []byte `json:"data"`
}

// OnUpdate is invoked synchronously for every applied frame, letting callers
// (e.g. a pruner or an edge's owner) react to the mutation without the feed
// needing to know about edges at all.
type OnUpdate func(pubkey solana.PublicKey, acc Account)

// AccountFeed is a minimal single-source consumer that applies a stream of
// account-write frames to a MemStore. It is deliberately not the full
// ingestion pipeline (multi-venue fan-in, snapshot reconciliation) spec §1
// places out of scope — just the part that keeps the core's local store
// current.
type AccountFeed struct {
	store    *MemStore
	logger   *slog.Logger
	onUpdate OnUpdate
}

// NewAccountFeed creates a feed that applies updates to store and, if
// onUpdate is non-nil, notifies the caller after each applied frame.
func NewAccountFeed(store *MemStore, logger *slog.Logger, onUpdate OnUpdate) *AccountFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountFeed{store: store, logger: logger, onUpdate: onUpdate}
}

// ApplyFrame decodes and applies a single raw frame. Exported so tests and
// file/replay-backed sources can drive the feed without a live socket.
func (f *AccountFeed) ApplyFrame(raw []byte) error {
	var frame AccountUpdateFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("accountfeed: decode frame: %w", err)
	}

	pubkey, err := solana.PublicKeyFromBase58(frame.Pubkey)
	if err != nil {
		return fmt.Errorf("accountfeed: decode pubkey %q: %w", frame.Pubkey, err)
	}
	owner, err := solana.PublicKeyFromBase58(frame.Owner)
	if err != nil {
		return fmt.Errorf("accountfeed: decode owner %q: %w", frame.Owner, err)
	}

	acc := Account{
		Slot:         frame.Slot,
		WriteVersion: frame.WriteVersion,
		Owner:        owner,
		Lamports:     frame.Lamports,
		Data:         frame.Data,
	}
	f.store.Apply(pubkey, acc)
	if f.onUpdate != nil {
		f.onUpdate(pubkey, acc)
	}
	return nil
}

// Run connects to url and applies frames until ctx is cancelled, reconnecting
// with exponential backoff on any transport error. Mirrors
// streams/jsonrpc/client's Client.run/subscribeAndProcess split between
// connection lifecycle and per-message processing.
func (f *AccountFeed) Run(ctx context.Context, url string) error {
	delay := initialReconnectDelay

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Info("connecting to account feed", "url", url)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			f.logger.Error("account feed dial failed, retrying", "error", err, "delay", delay)
			if !sleepOrDone(ctx, delay) {
				return ctx.Err()
			}
			delay = min(delay*2, maxReconnectDelay)
			continue
		}

		f.logger.Info("account feed connected")
		delay = initialReconnectDelay

		err = f.readLoop(ctx, conn)
		conn.Close()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			f.logger.Error("account feed read loop failed, reconnecting", "error", err, "delay", delay)
			if !sleepOrDone(ctx, delay) {
				return ctx.Err()
			}
			delay = min(delay*2, maxReconnectDelay)
		}
	}
}

func (f *AccountFeed) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("accountfeed: read message: %w", err)
		}
		if err := f.ApplyFrame(raw); err != nil {
			f.logger.Warn("dropping unparseable account frame", "error", err)
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func min(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
