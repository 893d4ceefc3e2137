// Package drafts keeps a stock of post ideas, including multi-part threads.
package drafts

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

// ErrDraftNotFound is returned for an unknown draft or thread id
var ErrDraftNotFound = fmt.Errorf("draft %w", types.ErrNotFound)

// MaxThreadParts caps a thread at a parent and four replies
const MaxThreadParts = 5

// KindThread saves the text as a thread split into parts
const KindThread = "thread"

// SourceManual marks drafts written by hand
const SourceManual = "manual"

var (
	partMarker = regexp.MustCompile(`【(?:親投稿?|返信\d*)】|\[(?i:parent|reply\s*\d*)\]`)
	blankLines = regexp.MustCompile(`\n\s*\n`)
)

// Store is the persistence drafts need
type Store interface {
	Drafts(ctx context.Context, accountID string) ([]types.Draft, error)
	AppendDrafts(ctx context.Context, drafts []types.Draft) error
	SetDraftStatus(ctx context.Context, accountID string, ids []string, status string) (int, error)
	DeleteDrafts(ctx context.Context, accountID string, ids []string) (int, error)
}

// SaveRequest stores a draft. With Type "thread" the text is split into
// parts, unless Replies already carries the replies of a generated thread.
type SaveRequest struct {
	Text    string   `json:"text"`
	Type    string   `json:"type"`
	Replies []string `json:"replies,omitempty"`
	Source  string   `json:"source"`
}

// Entry is a listed draft; a thread is one entry holding its ordered parts
type Entry struct {
	ID        string        `json:"id"`
	Kind      string        `json:"type"`
	Text      string        `json:"text,omitempty"`
	Status    string        `json:"status"`
	Source    string        `json:"source"`
	CreatedAt time.Time     `json:"created_at"`
	Parts     []types.Draft `json:"parts,omitempty"`
}

// Drafts manages saved drafts per account
type Drafts struct {
	store Store
	now   func() time.Time
}

// New creates a draft stock over st
func New(st Store) *Drafts {
	return &Drafts{store: st, now: time.Now}
}

// Save stores a single draft or the parts of a thread and returns the stored rows
func (d *Drafts) Save(ctx context.Context, acct types.Account, req SaveRequest) ([]types.Draft, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: draft text is required", types.ErrInvalidInput)
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = SourceManual
	}

	base := types.Draft{
		AccountID: acct.AccountID,
		Kind:      types.DraftSingle,
		Source:    source,
		Status:    types.DraftUnused,
		CreatedAt: d.now(),
	}

	var out []types.Draft
	switch req.Type {
	case "", types.DraftSingle:
		draft := base
		draft.ID = newID("draft")
		draft.Text = text
		out = []types.Draft{draft}
	case KindThread:
		parts := threadParts(text, req.Replies)
		threadID := newID("thread")
		for i, part := range parts {
			draft := base
			draft.ID = newID("draft")
			draft.Text = part
			draft.Kind = types.DraftThreadReply
			if i == 0 {
				draft.Kind = types.DraftThreadParent
			}
			draft.ThreadID = threadID
			draft.ThreadOrder = i
			out = append(out, draft)
		}
	default:
		return nil, fmt.Errorf("%w: unknown draft type %q", types.ErrInvalidInput, req.Type)
	}

	if err := d.store.AppendDrafts(ctx, out); err != nil {
		return nil, fmt.Errorf("failed to store drafts: %w", err)
	}
	return out, nil
}

// List returns the account's drafts newest first, threads grouped with their
// parts in order. A non-empty status keeps only drafts in that status.
func (d *Drafts) List(ctx context.Context, acct types.Account, status string) ([]Entry, error) {
	all, err := d.store.Drafts(ctx, acct.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to read drafts: %w", err)
	}

	var entries []Entry
	threads := map[string]int{}
	for _, draft := range all {
		if status != "" && draft.Status != status {
			continue
		}
		if draft.ThreadID == "" {
			entries = append(entries, Entry{
				ID:        draft.ID,
				Kind:      draft.Kind,
				Text:      draft.Text,
				Status:    draft.Status,
				Source:    draft.Source,
				CreatedAt: draft.CreatedAt,
			})
			continue
		}
		i, ok := threads[draft.ThreadID]
		if !ok {
			i = len(entries)
			threads[draft.ThreadID] = i
			entries = append(entries, Entry{
				ID:        draft.ThreadID,
				Kind:      KindThread,
				Status:    draft.Status,
				Source:    draft.Source,
				CreatedAt: draft.CreatedAt,
			})
		}
		entries[i].Parts = append(entries[i].Parts, draft)
	}

	for i := range entries {
		parts := entries[i].Parts
		sort.SliceStable(parts, func(a, b int) bool { return parts[a].ThreadOrder < parts[b].ThreadOrder })
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Toggle flips a draft between unused and used and returns the new status.
// Every part of a thread follows the part, or thread id, named.
func (d *Drafts) Toggle(ctx context.Context, acct types.Account, id string) (string, error) {
	group, err := d.group(ctx, acct, id)
	if err != nil {
		return "", err
	}
	next := types.DraftUsed
	if group[0].Status == types.DraftUsed {
		next = types.DraftUnused
	}
	if _, err := d.store.SetDraftStatus(ctx, acct.AccountID, ids(group), next); err != nil {
		return "", fmt.Errorf("failed to update draft: %w", err)
	}
	return next, nil
}

// Delete removes a draft, or every part of its thread, and returns how many rows went
func (d *Drafts) Delete(ctx context.Context, acct types.Account, id string) (int, error) {
	group, err := d.group(ctx, acct, id)
	if err != nil {
		return 0, err
	}
	n, err := d.store.DeleteDrafts(ctx, acct.AccountID, ids(group))
	if err != nil {
		return 0, fmt.Errorf("failed to delete draft: %w", err)
	}
	return n, nil
}

// group resolves id, a draft or thread id, to the drafts it covers, parent first
func (d *Drafts) group(ctx context.Context, acct types.Account, id string) ([]types.Draft, error) {
	all, err := d.store.Drafts(ctx, acct.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to read drafts: %w", err)
	}
	threadID := ""
	for _, draft := range all {
		if draft.ID == id {
			if draft.ThreadID == "" {
				return []types.Draft{draft}, nil
			}
			threadID = draft.ThreadID
			break
		}
		if draft.ThreadID == id {
			threadID = id
			break
		}
	}
	if threadID == "" {
		return nil, ErrDraftNotFound
	}

	var group []types.Draft
	for _, draft := range all {
		if draft.ThreadID == threadID {
			group = append(group, draft)
		}
	}
	sort.SliceStable(group, func(i, j int) bool { return group[i].ThreadOrder < group[j].ThreadOrder })
	return group, nil
}

// SplitThread cuts text into at most MaxThreadParts parts, on part markers
// such as 【返信1】 or [Reply 1] first and on blank lines otherwise. Text that
// cannot be split comes back as one part.
func SplitThread(text string) []string {
	if partMarker.MatchString(text) {
		if parts := nonEmpty(partMarker.Split(text, -1)); len(parts) > 1 {
			return capParts(parts)
		}
	}
	if parts := nonEmpty(blankLines.Split(text, -1)); len(parts) > 1 {
		return capParts(parts)
	}
	return []string{strings.TrimSpace(text)}
}

func threadParts(text string, replies []string) []string {
	if len(replies) == 0 {
		return SplitThread(text)
	}
	return capParts(nonEmpty(append([]string{text}, replies...)))
}

func nonEmpty(parts []string) []string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func capParts(parts []string) []string {
	if len(parts) > MaxThreadParts {
		return parts[:MaxThreadParts]
	}
	return parts
}

func ids(drafts []types.Draft) []string {
	out := make([]string, len(drafts))
	for i, d := range drafts {
		out[i] = d.ID
	}
	return out
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()[:8]
}
