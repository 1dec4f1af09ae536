package services_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/matchday/broadcast"
	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/services"
)

func TestStartAndEndRegularPeriod(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	started, err := e.periods.StartPeriod(ctx, owner, e.matchID(), "regular")
	if err != nil {
		t.Fatalf("start period: %v", err)
	}
	if started.PeriodNumber != 1 || started.PeriodType != "regular" {
		t.Fatalf("started = #%d %s, want #1 regular", started.PeriodNumber, started.PeriodType)
	}
	if started.EndedAt != nil || started.DurationSeconds != nil {
		t.Fatalf("new period should be open, got %+v", started)
	}

	e.clock.Advance(1500 * time.Millisecond)

	ended, err := e.periods.EndPeriod(ctx, owner, e.matchID(), started.ID)
	if err != nil {
		t.Fatalf("end period: %v", err)
	}
	if ended.DurationSeconds == nil || *ended.DurationSeconds != 2 {
		t.Fatalf("duration = %v, want 2", ended.DurationSeconds)
	}

	st := e.state(t)
	if st.Status != models.MatchPaused {
		t.Errorf("status = %s, want PAUSED", st.Status)
	}
	if st.TotalElapsedSeconds != 2 {
		t.Errorf("total elapsed = %d, want 2", st.TotalElapsedSeconds)
	}
	if st.CurrentPeriod == nil || *st.CurrentPeriod != 1 {
		t.Errorf("current period = %v, want 1", st.CurrentPeriod)
	}
	if st.CurrentPeriodType == nil || *st.CurrentPeriodType != models.PeriodRegular {
		t.Errorf("current period type = %v, want REGULAR", st.CurrentPeriodType)
	}

	want := []string{broadcast.EventPeriodStarted, broadcast.EventPeriodEnded}
	if got := e.notifier.types(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("notifications = %v, want %v", got, want)
	}
}

func TestStartPeriodRejectsSecondActive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.periods.StartPeriod(ctx, owner, e.matchID(), "regular"); err != nil {
		t.Fatalf("first start: %v", err)
	}
	_, err := e.periods.StartPeriod(ctx, owner, e.matchID(), "extra_time")
	if !errors.Is(err, services.ErrPeriodAlreadyActive) {
		t.Fatalf("second start err = %v, want ErrPeriodAlreadyActive", err)
	}
	if services.ErrorKind(err) != services.KindInvalidState {
		t.Errorf("kind = %s, want %s", services.ErrorKind(err), services.KindInvalidState)
	}

	list, err := e.periods.ListPeriods(ctx, owner, e.matchID())
	if err != nil {
		t.Fatalf("list periods: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("periods = %d, want 1", len(list))
	}
}

func TestPeriodAccessControl(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.periods.StartPeriod(ctx, stranger, e.matchID(), "regular")
	if !errors.Is(err, services.ErrAccessDenied) {
		t.Fatalf("stranger start err = %v, want ErrAccessDenied", err)
	}

	_, err = e.periods.StartPeriod(ctx, owner, 9999, "regular")
	if !errors.Is(err, services.ErrAccessDenied) {
		t.Fatalf("missing match err = %v, want ErrAccessDenied", err)
	}

	if _, err := e.periods.CalculateElapsedTime(ctx, stranger, e.matchID()); !errors.Is(err, services.ErrAccessDenied) {
		t.Fatalf("stranger elapsed err = %v, want ErrAccessDenied", err)
	}

	list, err := e.periods.ListPeriods(ctx, owner, e.matchID())
	if err != nil {
		t.Fatalf("list periods: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("denied calls must not write, got %d periods", len(list))
	}

	if _, err := e.periods.StartPeriod(ctx, admin, e.matchID(), "regular"); err != nil {
		t.Fatalf("admin start: %v", err)
	}
}

func TestStartPeriodInvalidType(t *testing.T) {
	e := newEnv(t)

	_, err := e.periods.StartPeriod(context.Background(), owner, e.matchID(), "overtime")
	if !errors.Is(err, services.ErrValidationFailed) {
		t.Fatalf("err = %v, want ErrValidationFailed", err)
	}
	for _, allowed := range models.AllowedPeriodTypes {
		if !strings.Contains(err.Error(), allowed) {
			t.Errorf("error %q does not list %q", err.Error(), allowed)
		}
	}
}

func TestPeriodNumberingPerType(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	run := func(periodType string, wantNumber int) {
		t.Helper()
		p, err := e.periods.StartPeriod(ctx, owner, e.matchID(), periodType)
		if err != nil {
			t.Fatalf("start %s: %v", periodType, err)
		}
		if p.PeriodNumber != wantNumber {
			t.Fatalf("%s number = %d, want %d", periodType, p.PeriodNumber, wantNumber)
		}
		e.clock.Advance(time.Minute)
		if _, err := e.periods.EndPeriod(ctx, owner, e.matchID(), p.ID); err != nil {
			t.Fatalf("end %s: %v", periodType, err)
		}
	}

	run("regular", 1)
	run("regular", 2)
	run("extra_time", 1)
	run("extra_time", 2)
	run("penalty_shootout", 1)

	st := e.state(t)
	if st.CurrentPeriod == nil || *st.CurrentPeriod != 2 {
		t.Errorf("current period = %v, want 2 (extra time must not move it)", st.CurrentPeriod)
	}
	if st.CurrentPeriodType == nil || *st.CurrentPeriodType != models.PeriodRegular {
		t.Errorf("current period type = %v, want REGULAR", st.CurrentPeriodType)
	}
	if st.TotalElapsedSeconds != 300 {
		t.Errorf("total elapsed = %d, want 300", st.TotalElapsedSeconds)
	}
}

func TestDeletedPeriodIsRestored(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.periods.StartPeriod(ctx, owner, e.matchID(), "regular")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.periods.DeletePeriod(ctx, owner, e.matchID(), first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	e.clock.Advance(10 * time.Second)
	again, err := e.periods.StartPeriod(ctx, owner, e.matchID(), "regular")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("restored id = %d, want %d", again.ID, first.ID)
	}
	if again.PeriodNumber != 1 {
		t.Errorf("restored number = %d, want 1", again.PeriodNumber)
	}
	if again.IsDeleted || again.DeletedAt != nil {
		t.Errorf("restored period still marked deleted: %+v", again)
	}
	if again.StartedAt == nil || !again.StartedAt.Equal(e.clock.Now()) {
		t.Errorf("restored startedAt = %v, want %v", again.StartedAt, e.clock.Now())
	}

	if err := e.periods.DeletePeriod(ctx, owner, e.matchID(), 9999); !errors.Is(err, services.ErrPeriodNotFound) {
		t.Errorf("delete missing err = %v, want ErrPeriodNotFound", err)
	}
}

func TestEndPeriodErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.periods.EndPeriod(ctx, owner, e.matchID(), 12345); !errors.Is(err, services.ErrPeriodNotFound) {
		t.Fatalf("end missing err = %v, want ErrPeriodNotFound", err)
	}

	p, err := e.periods.StartPeriod(ctx, owner, e.matchID(), "regular")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	e.clock.Advance(time.Second)
	if _, err := e.periods.EndPeriod(ctx, owner, e.matchID(), p.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	_, err = e.periods.EndPeriod(ctx, owner, e.matchID(), p.ID)
	if !errors.Is(err, services.ErrPeriodAlreadyEnded) {
		t.Fatalf("second end err = %v, want ErrPeriodAlreadyEnded", err)
	}
	if err.Error() != "Period is already ended" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestCalculateElapsedTime(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	elapsed, err := e.periods.CalculateElapsedTime(ctx, owner, e.matchID())
	if err != nil {
		t.Fatalf("elapsed: %v", err)
	}
	if elapsed != 0 {
		t.Fatalf("elapsed before any period = %d, want 0", elapsed)
	}

	first, err := e.periods.StartPeriod(ctx, owner, e.matchID(), "regular")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	e.clock.Advance(900 * time.Second)
	if _, err := e.periods.EndPeriod(ctx, owner, e.matchID(), first.ID); err != nil {
		t.Fatalf("end: %v", err)
	}

	second, err := e.periods.StartPeriod(ctx, owner, e.matchID(), "regular")
	if err != nil {
		t.Fatalf("start second: %v", err)
	}
	e.clock.Advance(300*time.Second + 400*time.Millisecond)

	elapsed, err = e.periods.CalculateElapsedTime(ctx, owner, e.matchID())
	if err != nil {
		t.Fatalf("elapsed: %v", err)
	}
	if elapsed != 1200 {
		t.Fatalf("elapsed with active period = %d, want 1200", elapsed)
	}

	active, err := e.periods.GetActivePeriod(ctx, owner, e.matchID())
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active == nil || active.ID != second.ID {
		t.Fatalf("active = %+v, want period %d", active, second.ID)
	}

	e.clock.Advance(599*time.Second + 600*time.Millisecond)
	if _, err := e.periods.EndPeriod(ctx, owner, e.matchID(), second.ID); err != nil {
		t.Fatalf("end second: %v", err)
	}
	elapsed, err = e.periods.CalculateElapsedTime(ctx, owner, e.matchID())
	if err != nil {
		t.Fatalf("elapsed: %v", err)
	}
	if elapsed != 1800 {
		t.Fatalf("elapsed after two halves = %d, want 1800", elapsed)
	}

	if active, err := e.periods.GetCurrentPeriod(ctx, owner, e.matchID()); err != nil || active != nil {
		t.Fatalf("current period = %+v, %v; want nil, nil", active, err)
	}
}

func TestConcurrentStartPeriod(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
		other     []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.periods.StartPeriod(ctx, owner, e.matchID(), "regular")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, services.ErrPeriodAlreadyActive):
				rejected++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if succeeded != 1 || rejected != workers-1 {
		t.Fatalf("succeeded = %d, rejected = %d", succeeded, rejected)
	}

	list, err := e.periods.ListPeriods(ctx, owner, e.matchID())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("periods = %d, want 1", len(list))
	}
}

func TestStartPeriodOnFinishedMatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.lifecycle.Cancel(ctx, owner, e.matchID(), ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := e.periods.StartPeriod(ctx, owner, e.matchID(), "regular")
	if services.ErrorKind(err) != services.KindInvalidState {
		t.Fatalf("err = %v, want invalid state transition", err)
	}
}

func TestBroadcastFailureDoesNotFailCommittedMutations(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.notifier.broken = true

	if _, err := e.lifecycle.Start(ctx, owner, e.matchID()); err != nil {
		t.Fatalf("start match: %v", err)
	}
	started, err := e.periods.StartPeriod(ctx, owner, e.matchID(), "regular")
	if err != nil {
		t.Fatalf("start period: %v", err)
	}
	e.clock.Advance(10 * time.Second)
	ended, err := e.periods.EndPeriod(ctx, owner, e.matchID(), started.ID)
	if err != nil {
		t.Fatalf("end period: %v", err)
	}
	if ended.DurationSeconds == nil || *ended.DurationSeconds != 10 {
		t.Fatalf("duration = %v, want 10", ended.DurationSeconds)
	}
	if _, err := e.lifecycle.Complete(ctx, owner, e.matchID(), services.CompleteInput{}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	stored, err := e.periodsDB.GetByID(ctx, nil, e.matchID(), started.ID)
	if err != nil {
		t.Fatalf("load period: %v", err)
	}
	if stored.EndedAt == nil || stored.DurationSeconds == nil || *stored.DurationSeconds != 10 {
		t.Errorf("stored period = %+v, want ended with 10s", stored)
	}
	st := e.state(t)
	if st.Status != models.MatchCompleted || st.TotalElapsedSeconds != 10 {
		t.Errorf("state = %s total %d, want COMPLETED total 10", st.Status, st.TotalElapsedSeconds)
	}

	want := []string{
		broadcast.EventMatchStatusChanged,
		broadcast.EventPeriodStarted,
		broadcast.EventPeriodEnded,
		broadcast.EventMatchStatusChanged,
	}
	if got := e.notifier.types(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("attempted broadcasts = %v, want %v", got, want)
	}
}
