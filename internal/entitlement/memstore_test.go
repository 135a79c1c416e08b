package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/sutbot/sutbot/internal/config"
)

// memStore is an in-memory Store with optional failure injection.
type memStore struct {
	subs       map[int64]*SubscriptionRecord
	daily      map[string]*DailyUsage
	persona    map[string]*PersonaUsage
	membership map[int64]*MembershipCache

	err error
	// membershipErr fails only the membership cache reads and writes.
	membershipErr error
}

func newMemStore() *memStore {
	return &memStore{
		subs:       make(map[int64]*SubscriptionRecord),
		daily:      make(map[string]*DailyUsage),
		persona:    make(map[string]*PersonaUsage),
		membership: make(map[int64]*MembershipCache),
	}
}

func dailyKey(userID int64, date time.Time) string {
	return fmt.Sprintf("%d|%s", userID, date.Format("2006-01-02"))
}

func personaKey(userID int64, persona string, date time.Time) string {
	return fmt.Sprintf("%d|%s|%s", userID, persona, date.Format("2006-01-02"))
}

func (s *memStore) GetSubscription(_ context.Context, userID int64) (*SubscriptionRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	sub, ok := s.subs[userID]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (s *memStore) DeactivateSubscription(_ context.Context, userID int64) error {
	if s.err != nil {
		return s.err
	}
	if sub, ok := s.subs[userID]; ok {
		sub.Tier = TierFree
		sub.IsActive = false
		sub.ExpiresAt = nil
	}
	return nil
}

func (s *memStore) GetDailyUsage(_ context.Context, userID int64, date time.Time) (DailyUsage, error) {
	if s.err != nil {
		return DailyUsage{}, s.err
	}
	if u, ok := s.daily[dailyKey(userID, date)]; ok {
		return *u, nil
	}
	return DailyUsage{UserID: userID, Date: date}, nil
}

func (s *memStore) IncrementDailyUsage(_ context.Context, userID int64, date time.Time, action Action) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	key := dailyKey(userID, date)
	u, ok := s.daily[key]
	if !ok {
		u = &DailyUsage{UserID: userID, Date: date}
		s.daily[key] = u
	}
	switch action {
	case ActionMessageDM:
		u.MessagesDM++
		return u.MessagesDM, nil
	case ActionSummaryDM:
		u.SummariesDM++
		return u.SummariesDM, nil
	case ActionSummaryGroup:
		u.SummariesGroup++
		return u.SummariesGroup, nil
	case ActionJudge:
		u.Judge++
		return u.Judge, nil
	}
	return 0, fmt.Errorf("unknown action %q", action)
}

func (s *memStore) ResetDailyUsage(_ context.Context, userID int64, date time.Time) error {
	if s.err != nil {
		return s.err
	}
	delete(s.daily, dailyKey(userID, date))
	return nil
}

func (s *memStore) GetPersonaUsage(_ context.Context, userID int64, persona string, date time.Time) (PersonaUsage, error) {
	if s.err != nil {
		return PersonaUsage{}, s.err
	}
	if u, ok := s.persona[personaKey(userID, persona, date)]; ok {
		return *u, nil
	}
	return PersonaUsage{UserID: userID, Persona: persona, Date: date}, nil
}

func (s *memStore) IncrementPersonaUsage(_ context.Context, userID int64, persona string, date time.Time, action PersonaAction) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	key := personaKey(userID, persona, date)
	u, ok := s.persona[key]
	if !ok {
		u = &PersonaUsage{UserID: userID, Persona: persona, Date: date}
		s.persona[key] = u
	}
	switch action {
	case PersonaActionSummary:
		u.SummaryCount++
		return u.SummaryCount, nil
	case PersonaActionChat:
		u.ChatCount++
		return u.ChatCount, nil
	case PersonaActionJudge:
		u.JudgeCount++
		return u.JudgeCount, nil
	}
	return 0, fmt.Errorf("unknown persona action %q", action)
}

func (s *memStore) GetMembershipCache(_ context.Context, userID int64) (*MembershipCache, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.membershipErr != nil {
		return nil, s.membershipErr
	}
	c, ok := s.membership[userID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) SetMembershipCache(_ context.Context, userID int64, isMember bool, checkedAt time.Time) error {
	if s.err != nil {
		return s.err
	}
	if s.membershipErr != nil {
		return s.membershipErr
	}
	s.membership[userID] = &MembershipCache{UserID: userID, IsMember: isMember, CheckedAt: checkedAt}
	return nil
}

// memPersona is one fake persona row, ordered by insertion for reconciles.
type memPersona struct {
	PersonaView
}

// memPersonaStore is an in-memory PersonaStore. Custom personas keep
// insertion order, which stands in for created_at ordering.
type memPersonaStore struct {
	byName  map[string]*memPersona
	ordered []*memPersona

	err error
}

func newMemPersonaStore() *memPersonaStore {
	s := &memPersonaStore{byName: make(map[string]*memPersona)}
	s.add(PersonaView{Name: NeutralPersona, IsActive: true})
	return s
}

func (s *memPersonaStore) add(view PersonaView) *memPersona {
	p := &memPersona{PersonaView: view}
	s.byName[view.Name] = p
	s.ordered = append(s.ordered, p)
	return p
}

func (s *memPersonaStore) GetPersona(_ context.Context, name string) (*PersonaView, error) {
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.byName[name]
	if !ok {
		return nil, nil
	}
	cp := p.PersonaView
	return &cp, nil
}

func (s *memPersonaStore) CountActiveCustom(_ context.Context, ownerID int64) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	count := 0
	for _, p := range s.ordered {
		if p.IsCustom && p.IsActive && p.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (s *memPersonaStore) SetGroupBonusBlocked(_ context.Context, ownerID int64, blocked bool) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	var affected int64
	for _, p := range s.ordered {
		if p.OwnerID == ownerID && p.IsGroupBonus && p.IsActive && p.IsBlocked != blocked {
			p.IsBlocked = blocked
			affected++
		}
	}
	return affected, nil
}

func (s *memPersonaStore) ReconcileToLimit(_ context.Context, ownerID int64, limit int) (int64, int64, error) {
	if s.err != nil {
		return 0, 0, s.err
	}
	var blocked, unblocked int64
	kept := 0
	for _, p := range s.ordered {
		if !p.IsCustom || !p.IsActive || p.OwnerID != ownerID {
			continue
		}
		if kept < limit {
			kept++
			if p.IsBlocked {
				p.IsBlocked = false
				unblocked++
			}
		} else if !p.IsBlocked {
			p.IsBlocked = true
			blocked++
		}
	}
	return blocked, unblocked, nil
}

// fakeClock is a settable Clock.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeChecker is a scripted MembershipChecker.
type fakeChecker struct {
	isMember bool
	err      error
	calls    int
}

func (c *fakeChecker) IsMemberLive(context.Context, int64) (bool, error) {
	c.calls++
	if c.err != nil {
		return false, c.err
	}
	return c.isMember, nil
}

// capturedDecision is one limit decision seen by the sink.
type capturedDecision struct {
	userID  int64
	name    string
	action  string
	tier    string
	allowed bool
	reason  string
}

// captureSink records transition callbacks for assertions.
type captureSink struct {
	usageChecks       []capturedDecision
	personaChecks     []capturedDecision
	downgrades        []int64
	membershipChanges []bool
	blockedCounts     []int64
	unblockedCounts   []int64
}

func (s *captureSink) UsageChecked(_ context.Context, userID int64, action, tier string, allowed bool, _, _ int) {
	s.usageChecks = append(s.usageChecks, capturedDecision{
		userID: userID, action: action, tier: tier, allowed: allowed,
	})
}

func (s *captureSink) PersonaChecked(_ context.Context, userID int64, persona, action, tier string, allowed bool, reason string) {
	s.personaChecks = append(s.personaChecks, capturedDecision{
		userID: userID, name: persona, action: action, tier: tier, allowed: allowed, reason: reason,
	})
}

func (s *captureSink) SubscriptionDowngraded(_ context.Context, userID int64) {
	s.downgrades = append(s.downgrades, userID)
}

func (s *captureSink) MembershipChanged(_ context.Context, _ int64, isMember bool) {
	s.membershipChanges = append(s.membershipChanges, isMember)
}

func (s *captureSink) PersonasBlocked(_ context.Context, _ int64, count int64) {
	s.blockedCounts = append(s.blockedCounts, count)
}

func (s *captureSink) PersonasUnblocked(_ context.Context, _ int64, count int64) {
	s.unblockedCounts = append(s.unblockedCounts, count)
}

func testLimits() config.LimitsConfig {
	return config.LimitsConfig{
		Free:                      config.ActionCaps{MessageDM: 10, SummaryDM: 2, SummaryGroup: 3, Judge: 3},
		Pro:                       config.ActionCaps{MessageDM: 200, SummaryDM: 20, SummaryGroup: 30, Judge: 30},
		PersonaDailyCap:           5,
		SlotsFreeBase:             0,
		SlotsProBase:              3,
		MembershipFreshWindow:     time.Hour,
		MembershipDegradedCeiling: 24 * time.Hour,
		Cooldown:                  time.Minute,
		RateLimitRequests:         10,
		RateLimitWindow:           time.Minute,
	}
}
