package selector_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/safegreen/outreach-engine/internal/domain"
	"github.com/safegreen/outreach-engine/internal/service/selector"
)

type memSource struct {
	birthday []domain.Contact
	renewal  []domain.Contact
	err      error
}

func (m *memSource) ByBirthday(_ context.Context, _ time.Time) ([]domain.Contact, error) {
	return m.birthday, m.err
}

func (m *memSource) ByRenewal(_ context.Context, _ time.Time, _ domain.RenewalScope) ([]domain.Contact, error) {
	return m.renewal, m.err
}

type memSuppression struct {
	blocked map[string]bool
}

func (m *memSuppression) IsSuppressed(_ context.Context, address string) (bool, error) {
	return m.blocked[address], nil
}

type memLedger struct {
	marked map[string]bool
}

func (m *memLedger) IsMarked(_ context.Context, recipient string, kind domain.CampaignKind, _ string) (bool, error) {
	return m.marked[recipient+"|"+string(kind)], nil
}

var asOf = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func contact(doc, phone string) domain.Contact {
	return domain.Contact{Document: doc, Name: "Contact " + doc, Phone: phone}
}

func TestSelectClassifiesSkips(t *testing.T) {
	// A sendable, B suppressed, C without a phone.
	src := &memSource{birthday: []domain.Contact{
		contact("11111111111", "11987650001"),
		contact("22222222222", "11987650002"),
		contact("33333333333", ""),
	}}
	sup := &memSuppression{blocked: map[string]bool{"5511987650002": true}}
	led := &memLedger{marked: map[string]bool{}}

	res, err := selector.NewService(src, sup, led).Select(context.Background(), domain.KindBirthday, "", asOf)
	if err != nil {
		t.Fatalf("select: %v", err)
	}

	if len(res.Candidates) != 1 || res.Candidates[0].Contact.Document != "11111111111" {
		t.Fatalf("expected only A as candidate, got %+v", res.Candidates)
	}
	if res.Candidates[0].Phone != "5511987650001" {
		t.Fatalf("expected normalized phone, got %s", res.Candidates[0].Phone)
	}
	if len(res.Skips) != 2 {
		t.Fatalf("expected 2 skips, got %d", len(res.Skips))
	}
	for _, sk := range res.Skips {
		switch sk.Contact.Document {
		case "22222222222":
			if sk.Outcome != domain.OutcomeSkippedDuplicate || sk.Detail != "address suppressed" {
				t.Errorf("B: got %s/%s", sk.Outcome, sk.Detail)
			}
		case "33333333333":
			if sk.Outcome != domain.OutcomeSkippedNoPhone {
				t.Errorf("C: got %s", sk.Outcome)
			}
		default:
			t.Errorf("unexpected skip for %s", sk.Contact.Document)
		}
	}
}

func TestSelectDedupeExcludesMarked(t *testing.T) {
	src := &memSource{birthday: []domain.Contact{contact("11111111111", "11987650001")}}
	sup := &memSuppression{blocked: map[string]bool{}}
	led := &memLedger{marked: map[string]bool{"11111111111|birthday": true}}

	res, err := selector.NewService(src, sup, led).Select(context.Background(), domain.KindBirthday, "", asOf)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(res.Candidates) != 0 {
		t.Fatalf("marked recipient selected: %+v", res.Candidates)
	}
	if len(res.Skips) != 1 || res.Skips[0].Outcome != domain.OutcomeSkippedDuplicate || res.Skips[0].Detail != "already contacted" {
		t.Fatalf("expected already-contacted skip, got %+v", res.Skips)
	}
}

func TestSelectEmailSuppressionAlsoExcludes(t *testing.T) {
	c := contact("11111111111", "11987650001")
	c.Email = "user@example.com"
	src := &memSource{birthday: []domain.Contact{c}}
	sup := &memSuppression{blocked: map[string]bool{"user@example.com": true}}
	led := &memLedger{marked: map[string]bool{}}

	res, _ := selector.NewService(src, sup, led).Select(context.Background(), domain.KindBirthday, "", asOf)
	if len(res.Candidates) != 0 {
		t.Fatal("expected email-suppressed contact excluded")
	}
}

func TestSelectRenewalScopeReference(t *testing.T) {
	src := &memSource{renewal: []domain.Contact{contact("11111111111", "11987650001")}}
	sup := &memSuppression{blocked: map[string]bool{}}
	led := &memLedger{marked: map[string]bool{}}
	svc := selector.NewService(src, sup, led)

	res, _ := svc.Select(context.Background(), domain.KindRenewal, domain.ScopeCurrentYear, asOf)
	if res.Reference != "2026" {
		t.Fatalf("current scope reference: %s", res.Reference)
	}
	res, _ = svc.Select(context.Background(), domain.KindRenewal, domain.ScopeAllYears, asOf)
	if res.Reference != "all" {
		t.Fatalf("all scope reference: %s", res.Reference)
	}
}

func TestSelectSourceError(t *testing.T) {
	src := &memSource{err: errors.New("crm unreachable")}
	svc := selector.NewService(src, &memSuppression{}, &memLedger{})

	_, err := svc.Select(context.Background(), domain.KindBirthday, "", asOf)
	var selErr *selector.SelectionError
	if !errors.As(err, &selErr) {
		t.Fatalf("expected SelectionError, got %v", err)
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	src := &memSource{birthday: []domain.Contact{
		contact("11111111111", "11987650001"),
		contact("22222222222", "11987650002"),
	}}
	svc := selector.NewService(src, &memSuppression{blocked: map[string]bool{}}, &memLedger{marked: map[string]bool{}})

	a, _ := svc.Select(context.Background(), domain.KindBirthday, "", asOf)
	b, _ := svc.Select(context.Background(), domain.KindBirthday, "", asOf)
	if len(a.Candidates) != len(b.Candidates) {
		t.Fatal("candidate counts differ between identical selections")
	}
	for i := range a.Candidates {
		if a.Candidates[i].Contact.Document != b.Candidates[i].Contact.Document {
			t.Fatalf("order differs at %d", i)
		}
	}
}
