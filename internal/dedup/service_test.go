package dedup

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tarigelamin1997/tradesense-sub005/internal/domain"
	"github.com/tarigelamin1997/tradesense-sub005/internal/matching"
	"github.com/tarigelamin1997/tradesense-sub005/internal/storage"
	"github.com/tarigelamin1997/tradesense-sub005/internal/storage/memory"
)

const testUser = "user-1"

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type testEnv struct {
	service      *Service
	fingerprints *memory.FingerprintStore
	resolutions  *memory.ResolutionLogStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fingerprints := memory.NewFingerprintStore()
	resolutions := memory.NewResolutionLogStore()
	matcher := matching.NewMatcher(fingerprints, matching.DefaultConfig(), testLogger())
	return &testEnv{
		service:      NewService(fingerprints, resolutions, matcher, testLogger()),
		fingerprints: fingerprints,
		resolutions:  resolutions,
	}
}

func baseTrade(id string) domain.TradeRecord {
	return domain.TradeRecord{
		TradeID:    id,
		Symbol:     "ES",
		EntryTime:  "2024-01-01T10:00:00",
		ExitTime:   "2024-01-01T10:30:00",
		EntryPrice: 4500.00,
		ExitPrice:  4510.00,
		Qty:        2,
		Direction:  "long",
		DataSource: "broker_csv",
	}
}

func TestDeduplicateTrades_AllUnique(t *testing.T) {
	env := newTestEnv(t)

	a := baseTrade("a")
	b := baseTrade("b")
	b.Symbol = "NQ"

	result := env.service.DeduplicateTrades(context.Background(), []domain.TradeRecord{a, b}, testUser, true)

	if result.OriginalCount != 2 {
		t.Errorf("OriginalCount = %d, want 2", result.OriginalCount)
	}
	if len(result.UniqueTrades) != 2 {
		t.Fatalf("UniqueTrades = %d, want 2", len(result.UniqueTrades))
	}
	if result.DuplicatesRemoved != 0 || len(result.DuplicatesFound) != 0 {
		t.Errorf("expected no duplicates, removed=%d found=%d", result.DuplicatesRemoved, len(result.DuplicatesFound))
	}
	if len(result.ConflictsRequiringReview) != 0 || len(result.ProcessingErrors) != 0 {
		t.Errorf("expected clean batch, review=%d errors=%d", len(result.ConflictsRequiringReview), len(result.ProcessingErrors))
	}
	for _, accepted := range result.UniqueTrades {
		if accepted.RequiresReview {
			t.Errorf("trade %s should not require review", accepted.Trade.TradeID)
		}
	}
}

func TestDeduplicateTrades_IntraBatchSkip(t *testing.T) {
	env := newTestEnv(t)

	// Identical canonical fields, different trade IDs.
	first := baseTrade("first")
	second := baseTrade("second")

	result := env.service.DeduplicateTrades(context.Background(), []domain.TradeRecord{first, second}, testUser, true)

	if len(result.UniqueTrades) != 1 || result.UniqueTrades[0].Trade.TradeID != "first" {
		t.Fatalf("UniqueTrades = %+v, want only first", result.UniqueTrades)
	}
	if len(result.DuplicatesFound) != 1 {
		t.Fatalf("DuplicatesFound = %d, want 1", len(result.DuplicatesFound))
	}

	dup := result.DuplicatesFound[0]
	if dup.Trade.TradeID != "second" {
		t.Errorf("duplicate trade = %s, want second", dup.Trade.TradeID)
	}
	if dup.Reason != domain.ReasonDuplicateWithinBatch {
		t.Errorf("Reason = %s, want %s", dup.Reason, domain.ReasonDuplicateWithinBatch)
	}
	if dup.Action != domain.ActionSkipped {
		t.Errorf("Action = %s, want %s", dup.Action, domain.ActionSkipped)
	}
	if result.DuplicatesRemoved != 1 {
		t.Errorf("DuplicatesRemoved = %d, want 1", result.DuplicatesRemoved)
	}
}

func TestDeduplicateTrades_AutoRemoveExactMatch(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.service.RegisterTrades(context.Background(), []domain.TradeRecord{baseTrade("hist-1")}, testUser); err != nil {
		t.Fatalf("RegisterTrades failed: %v", err)
	}

	result := env.service.DeduplicateTrades(context.Background(), []domain.TradeRecord{baseTrade("new")}, testUser, true)

	if len(result.UniqueTrades) != 0 {
		t.Errorf("UniqueTrades = %d, want 0", len(result.UniqueTrades))
	}
	if len(result.DuplicatesFound) != 1 {
		t.Fatalf("DuplicatesFound = %d, want 1", len(result.DuplicatesFound))
	}

	dup := result.DuplicatesFound[0]
	if dup.Action != domain.ActionAutoRemoved {
		t.Errorf("Action = %s, want %s", dup.Action, domain.ActionAutoRemoved)
	}
	if dup.Reason != domain.ReasonDuplicateOfExisting {
		t.Errorf("Reason = %s, want %s", dup.Reason, domain.ReasonDuplicateOfExisting)
	}
	if dup.ExistingTradeID != "hist-1" {
		t.Errorf("ExistingTradeID = %s, want hist-1", dup.ExistingTradeID)
	}
	if dup.MatchType != domain.MatchExact || dup.Confidence != 1.0 {
		t.Errorf("got %s/%f, want exact/1.0", dup.MatchType, dup.Confidence)
	}

	// Auto-removal appends one audit row.
	aggs, err := env.resolutions.Aggregate(context.Background(), testUser, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(aggs) != 1 {
		t.Fatalf("aggregates = %d, want 1", len(aggs))
	}
	if aggs[0].MatchType != domain.MatchExact || aggs[0].Action != domain.ActionAutoRemoved || aggs[0].Count != 1 {
		t.Errorf("unexpected aggregate row: %+v", aggs[0])
	}
}

func TestDeduplicateTrades_FuzzyMatchAtThresholdAutoRemoved(t *testing.T) {
	env := newTestEnv(t)

	hist := baseTrade("hist-1")
	hist.EntryTime = "2024-01-01T10:01:00" // same fuzzy bucket, different exact hash
	if _, err := env.service.RegisterTrades(context.Background(), []domain.TradeRecord{hist}, testUser); err != nil {
		t.Fatalf("RegisterTrades failed: %v", err)
	}

	result := env.service.DeduplicateTrades(context.Background(), []domain.TradeRecord{baseTrade("new")}, testUser, true)

	if len(result.DuplicatesFound) != 1 {
		t.Fatalf("DuplicatesFound = %d, want 1 (0.95 sits exactly on the threshold)", len(result.DuplicatesFound))
	}
	dup := result.DuplicatesFound[0]
	if dup.MatchType != domain.MatchFuzzyTime || dup.Confidence != 0.95 {
		t.Errorf("got %s/%f, want fuzzy_time/0.95", dup.MatchType, dup.Confidence)
	}
	if dup.Action != domain.ActionAutoRemoved {
		t.Errorf("Action = %s, want %s", dup.Action, domain.ActionAutoRemoved)
	}
	if _, ok := dup.Differences["entry_time"]; !ok {
		t.Errorf("expected entry_time difference, got %v", dup.Differences)
	}
}

func TestDeduplicateTrades_LowConfidenceFlaggedForReview(t *testing.T) {
	env := newTestEnv(t)

	// Proximity-only match with ~0.9 confidence: entry price off by ~0.3%.
	hist := baseTrade("hist-1")
	hist.EntryTime = "2024-01-01T10:03:00"
	hist.EntryPrice = 4513.50
	if _, err := env.service.RegisterTrades(context.Background(), []domain.TradeRecord{hist}, testUser); err != nil {
		t.Fatalf("RegisterTrades failed: %v", err)
	}

	result := env.service.DeduplicateTrades(context.Background(), []domain.TradeRecord{baseTrade("new")}, testUser, true)

	if len(result.DuplicatesFound) != 0 {
		t.Errorf("expected no auto-removals, got %+v", result.DuplicatesFound)
	}
	if len(result.ConflictsRequiringReview) != 1 {
		t.Fatalf("ConflictsRequiringReview = %d, want 1", len(result.ConflictsRequiringReview))
	}

	conflict := result.ConflictsRequiringReview[0]
	if conflict.ReviewID == "" {
		t.Error("ReviewID must be set")
	}
	if len(conflict.Candidates) != 1 || conflict.Candidates[0].ExistingTradeID != "hist-1" {
		t.Errorf("unexpected candidates: %+v", conflict.Candidates)
	}
	if conflict.Candidates[0].Confidence >= 0.95 {
		t.Errorf("confidence %f should sit below the auto-resolve threshold", conflict.Candidates[0].Confidence)
	}

	// The flagged trade still enters the batch, marked for review.
	if len(result.UniqueTrades) != 1 || !result.UniqueTrades[0].RequiresReview {
		t.Errorf("UniqueTrades = %+v, want one trade requiring review", result.UniqueTrades)
	}
}

func TestDeduplicateTrades_AutoResolveDisabled(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.service.RegisterTrades(context.Background(), []domain.TradeRecord{baseTrade("hist-1")}, testUser); err != nil {
		t.Fatalf("RegisterTrades failed: %v", err)
	}

	result := env.service.DeduplicateTrades(context.Background(), []domain.TradeRecord{baseTrade("new")}, testUser, false)

	if len(result.DuplicatesFound) != 0 {
		t.Errorf("auto-resolve disabled must not remove trades, got %+v", result.DuplicatesFound)
	}
	if len(result.ConflictsRequiringReview) != 1 {
		t.Fatalf("ConflictsRequiringReview = %d, want 1", len(result.ConflictsRequiringReview))
	}
	if got := result.ConflictsRequiringReview[0].Candidates[0].Confidence; got != 1.0 {
		t.Errorf("candidate confidence = %f, want 1.0", got)
	}
}

func TestDeduplicateTrades_AutoRemovedHashNotRemembered(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.service.RegisterTrades(context.Background(), []domain.TradeRecord{baseTrade("hist-1")}, testUser); err != nil {
		t.Fatalf("RegisterTrades failed: %v", err)
	}

	// Both batch trades match the history exactly. The first is auto-removed;
	// its hash must not join the intra-batch state, so the second is resolved
	// against history too rather than skipped.
	result := env.service.DeduplicateTrades(context.Background(),
		[]domain.TradeRecord{baseTrade("new-1"), baseTrade("new-2")}, testUser, true)

	if len(result.DuplicatesFound) != 2 {
		t.Fatalf("DuplicatesFound = %d, want 2", len(result.DuplicatesFound))
	}
	for _, dup := range result.DuplicatesFound {
		if dup.Action != domain.ActionAutoRemoved {
			t.Errorf("trade %s: Action = %s, want %s", dup.Trade.TradeID, dup.Action, domain.ActionAutoRemoved)
		}
		if dup.Reason != domain.ReasonDuplicateOfExisting {
			t.Errorf("trade %s: Reason = %s, want %s", dup.Trade.TradeID, dup.Reason, domain.ReasonDuplicateOfExisting)
		}
	}
}

func TestDeduplicateTrades_ReviewCandidatesCapped(t *testing.T) {
	env := newTestEnv(t)

	// Five proximity matches around 0.9 confidence, none auto-resolvable.
	var history []domain.TradeRecord
	for _, id := range []string{"h1", "h2", "h3", "h4", "h5"} {
		hist := baseTrade(id)
		hist.EntryTime = "2024-01-01T10:03:00"
		hist.EntryPrice = 4513.50
		history = append(history, hist)
	}
	if _, err := env.service.RegisterTrades(context.Background(), history, testUser); err != nil {
		t.Fatalf("RegisterTrades failed: %v", err)
	}

	result := env.service.DeduplicateTrades(context.Background(), []domain.TradeRecord{baseTrade("new")}, testUser, true)

	if len(result.ConflictsRequiringReview) != 1 {
		t.Fatalf("ConflictsRequiringReview = %d, want 1", len(result.ConflictsRequiringReview))
	}
	if got := len(result.ConflictsRequiringReview[0].Candidates); got != 3 {
		t.Errorf("candidates = %d, want the cap of 3", got)
	}
}

// failingFingerprintStore errors on every read, exercising per-trade error
// isolation.
type failingFingerprintStore struct {
	storage.FingerprintStore
}

func (s *failingFingerprintStore) FindByExactHash(context.Context, string, string) ([]*domain.TradeFingerprint, error) {
	return nil, errors.New("store unavailable")
}

func TestDeduplicateTrades_MatcherErrorIsolated(t *testing.T) {
	fingerprints := &failingFingerprintStore{FingerprintStore: memory.NewFingerprintStore()}
	resolutions := memory.NewResolutionLogStore()
	matcher := matching.NewMatcher(fingerprints, matching.DefaultConfig(), testLogger())
	service := NewService(fingerprints, resolutions, matcher, testLogger())

	result := service.DeduplicateTrades(context.Background(), []domain.TradeRecord{baseTrade("a")}, testUser, true)

	if len(result.ProcessingErrors) != 1 {
		t.Fatalf("ProcessingErrors = %d, want 1", len(result.ProcessingErrors))
	}
	if result.ProcessingErrors[0].Trade.TradeID != "a" {
		t.Errorf("error recorded for %s, want a", result.ProcessingErrors[0].Trade.TradeID)
	}
	if result.ProcessingErrors[0].Err == "" {
		t.Error("error message must be recorded")
	}
	if len(result.UniqueTrades) != 0 || len(result.DuplicatesFound) != 0 {
		t.Errorf("failed trade must not be accepted or removed: %+v", result)
	}
}

// failingResolutionLogStore rejects appends so auto-removal cannot be audited.
type failingResolutionLogStore struct {
	storage.ResolutionLogStore
}

func (s *failingResolutionLogStore) Append(context.Context, *domain.DuplicateResolution) error {
	return errors.New("audit log unavailable")
}

func TestDeduplicateTrades_AuditFailureBlocksAutoRemoval(t *testing.T) {
	fingerprints := memory.NewFingerprintStore()
	resolutions := &failingResolutionLogStore{ResolutionLogStore: memory.NewResolutionLogStore()}
	matcher := matching.NewMatcher(fingerprints, matching.DefaultConfig(), testLogger())
	service := NewService(fingerprints, resolutions, matcher, testLogger())

	if _, err := service.RegisterTrades(context.Background(), []domain.TradeRecord{baseTrade("hist-1")}, testUser); err != nil {
		t.Fatalf("RegisterTrades failed: %v", err)
	}

	result := service.DeduplicateTrades(context.Background(), []domain.TradeRecord{baseTrade("new")}, testUser, true)

	if len(result.DuplicatesFound) != 0 {
		t.Errorf("removal without an audit row must not be reported, got %+v", result.DuplicatesFound)
	}
	if len(result.ProcessingErrors) != 1 {
		t.Fatalf("ProcessingErrors = %d, want 1", len(result.ProcessingErrors))
	}
}

func TestRegisterTrades_UpsertsByTradeID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registered, err := env.service.RegisterTrades(ctx, []domain.TradeRecord{baseTrade("a"), baseTrade("b")}, testUser)
	if err != nil {
		t.Fatalf("RegisterTrades failed: %v", err)
	}
	if registered != 2 {
		t.Errorf("registered = %d, want 2", registered)
	}

	// Re-registering replaces, never duplicates.
	updated := baseTrade("a")
	updated.EntryPrice = 4501.00
	if _, err := env.service.RegisterTrades(ctx, []domain.TradeRecord{updated}, testUser); err != nil {
		t.Fatalf("RegisterTrades failed: %v", err)
	}

	count, err := env.fingerprints.Count(ctx, testUser)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2 after re-registering trade a", count)
	}
}

// failingUpsertStore rejects upserts for one trade ID.
type failingUpsertStore struct {
	storage.FingerprintStore
	rejectTradeID string
}

func (s *failingUpsertStore) Upsert(ctx context.Context, fp *domain.TradeFingerprint) error {
	if fp.TradeID == s.rejectTradeID {
		return errors.New("write rejected")
	}
	return s.FingerprintStore.Upsert(ctx, fp)
}

func TestRegisterTrades_SkipsFailedUpserts(t *testing.T) {
	fingerprints := &failingUpsertStore{FingerprintStore: memory.NewFingerprintStore(), rejectTradeID: "bad"}
	resolutions := memory.NewResolutionLogStore()
	matcher := matching.NewMatcher(fingerprints, matching.DefaultConfig(), testLogger())
	service := NewService(fingerprints, resolutions, matcher, testLogger())

	registered, err := service.RegisterTrades(context.Background(),
		[]domain.TradeRecord{baseTrade("good"), baseTrade("bad"), baseTrade("also-good")}, testUser)
	if err != nil {
		t.Fatalf("RegisterTrades failed: %v", err)
	}
	if registered != 2 {
		t.Errorf("registered = %d, want 2", registered)
	}
}

func TestDeduplicationStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.service.RegisterTrades(ctx, []domain.TradeRecord{baseTrade("hist-1")}, testUser); err != nil {
		t.Fatalf("RegisterTrades failed: %v", err)
	}
	env.service.DeduplicateTrades(ctx, []domain.TradeRecord{baseTrade("dup-1")}, testUser, true)

	stats, err := env.service.DeduplicationStats(ctx, testUser, 30)
	if err != nil {
		t.Fatalf("DeduplicationStats failed: %v", err)
	}

	if stats.UserID != testUser || stats.WindowDays != 30 {
		t.Errorf("stats header = %s/%d, want %s/30", stats.UserID, stats.WindowDays, testUser)
	}
	if stats.TotalFingerprints != 1 {
		t.Errorf("TotalFingerprints = %d, want 1", stats.TotalFingerprints)
	}
	if len(stats.Resolutions) != 1 || stats.Resolutions[0].Count != 1 {
		t.Errorf("Resolutions = %+v, want one auto_removed bucket", stats.Resolutions)
	}
}

func TestCleanupOldFingerprints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -400)

	oldFp := &domain.TradeFingerprint{TradeID: "old", UserID: testUser, ExactHash: "h1", CreatedAt: old}
	if err := env.fingerprints.Upsert(ctx, oldFp); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := env.service.RegisterTrades(ctx, []domain.TradeRecord{baseTrade("fresh")}, testUser); err != nil {
		t.Fatalf("RegisterTrades failed: %v", err)
	}

	oldRes := &domain.DuplicateResolution{
		UserID:     testUser,
		MatchType:  domain.MatchExact,
		Action:     domain.ActionAutoRemoved,
		Confidence: 1.0,
		ResolvedAt: old,
	}
	if err := env.resolutions.Append(ctx, oldRes); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	result, err := env.service.CleanupOldFingerprints(ctx, 365)
	if err != nil {
		t.Fatalf("CleanupOldFingerprints failed: %v", err)
	}
	if result.FingerprintsDeleted != 1 {
		t.Errorf("FingerprintsDeleted = %d, want 1", result.FingerprintsDeleted)
	}
	if result.ResolutionsDeleted != 1 {
		t.Errorf("ResolutionsDeleted = %d, want 1", result.ResolutionsDeleted)
	}

	count, err := env.fingerprints.Count(ctx, testUser)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 surviving fingerprint", count)
	}
}
