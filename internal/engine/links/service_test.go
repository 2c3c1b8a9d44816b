package links

import (
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

type spyInvalidator struct {
	mu    sync.Mutex
	slugs []string
}

func (s *spyInvalidator) Invalidate(slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slugs = append(s.slugs, slug)
}

type spyRegistrar struct{ slugs []string }

func (s *spyRegistrar) Add(slug string) { s.slugs = append(s.slugs, slug) }

func newTestService(t *testing.T) (*Service, *spyInvalidator, *spyRegistrar) {
	t.Helper()
	inv := &spyInvalidator{}
	reg := &spyRegistrar{}
	svc := NewService(NewRepository(setupTestDB(t)), inv, reg)
	return svc, inv, reg
}

func TestService_CreateLink(t *testing.T) {
	svc, _, reg := newTestService(t)

	link, err := svc.CreateLink(&CreateRequest{
		DestinationURL: "https://example.com",
		CustomSlug:     "launch",
		Password:       "hunter2",
	})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if link.Slug != "launch" {
		t.Errorf("slug = %s", link.Slug)
	}
	if link.ID == "" {
		t.Error("missing id")
	}
	if link.RedirectType != "temporary" {
		t.Errorf("redirect type = %s, want temporary default", link.RedirectType)
	}
	if link.PasswordHash == "" || link.PasswordHash == "hunter2" {
		t.Error("password not hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(link.PasswordHash), []byte("hunter2")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}
	if len(reg.slugs) != 1 || reg.slugs[0] != "launch" {
		t.Errorf("registrar got %v", reg.slugs)
	}
}

func TestService_CreateLink_RejectsBadDestination(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.CreateLink(&CreateRequest{DestinationURL: "not-a-url"}); err == nil {
		t.Error("expected validation error")
	}
}

func TestService_CreateLink_RejectsTakenSlug(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := &CreateRequest{DestinationURL: "https://example.com", CustomSlug: "dupe"}
	if _, err := svc.CreateLink(req); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.CreateLink(req); err == nil {
		t.Error("expected error for duplicate slug")
	}
}

func TestService_UpdateLink_InvalidatesCache(t *testing.T) {
	svc, inv, _ := newTestService(t)
	if _, err := svc.CreateLink(&CreateRequest{DestinationURL: "https://example.com", CustomSlug: "upd"}); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	link, err := svc.UpdateLink("upd", &UpdateRequest{DestinationURL: "https://new.example.com"})
	if err != nil {
		t.Fatalf("UpdateLink: %v", err)
	}
	if link.DestinationURL != "https://new.example.com" {
		t.Errorf("destination = %s", link.DestinationURL)
	}
	if len(inv.slugs) != 1 || inv.slugs[0] != "upd" {
		t.Errorf("invalidated %v, want [upd]", inv.slugs)
	}
}

func TestService_SetDeviceRouting(t *testing.T) {
	svc, inv, _ := newTestService(t)
	if _, err := svc.CreateLink(&CreateRequest{DestinationURL: "https://example.com", CustomSlug: "dev"}); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	link, err := svc.SetDeviceRouting("dev", map[string]string{"mobile": "https://m.example.com"})
	if err != nil {
		t.Fatalf("SetDeviceRouting: %v", err)
	}
	if link.Rules == nil || link.Rules.Device["mobile"] != "https://m.example.com" {
		t.Errorf("rules = %+v", link.Rules)
	}
	if len(inv.slugs) == 0 {
		t.Error("cache not invalidated")
	}

	got, err := svc.GetLink("dev")
	if err != nil {
		t.Fatalf("GetLink: %v", err)
	}
	if got.Rules == nil || got.Rules.Device["mobile"] != "https://m.example.com" {
		t.Error("device routing not persisted")
	}
}

func TestService_SetDeviceRouting_RejectsUnknownClass(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.CreateLink(&CreateRequest{DestinationURL: "https://example.com", CustomSlug: "dev"}); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if _, err := svc.SetDeviceRouting("dev", map[string]string{"fridge": "https://example.com"}); err == nil {
		t.Error("expected error for unknown device class")
	}
}

func TestService_DeleteRouting_CollapsesEmptyRules(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.CreateLink(&CreateRequest{DestinationURL: "https://example.com", CustomSlug: "geo"}); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if _, err := svc.SetGeoRouting("geo", map[string]string{"DE": "https://example.de"}); err != nil {
		t.Fatalf("SetGeoRouting: %v", err)
	}

	link, err := svc.DeleteRouting("geo", "geo")
	if err != nil {
		t.Fatalf("DeleteRouting: %v", err)
	}
	if link.Rules != nil {
		t.Errorf("expected rules collapsed to nil, got %+v", link.Rules)
	}

	if _, err := svc.DeleteRouting("geo", "weather"); err == nil {
		t.Error("expected error for unknown routing kind")
	}
}

func TestService_SetABTest_Defaults(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.CreateLink(&CreateRequest{DestinationURL: "https://example.com", CustomSlug: "abx"}); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	link, err := svc.SetABTest("abx", &ABTest{
		VariantA: "https://a.example.com",
		VariantB: "https://b.example.com",
	})
	if err != nil {
		t.Fatalf("SetABTest: %v", err)
	}
	if link.Rules.ABTest.Split != 50 {
		t.Errorf("split = %d, want 50 default", link.Rules.ABTest.Split)
	}
	if link.Rules.ABTest.Status != ABStatusActive {
		t.Errorf("status = %s, want active default", link.Rules.ABTest.Status)
	}

	// Replacing the test keeps a single test per link.
	link, err = svc.SetABTest("abx", &ABTest{
		VariantA: "https://a2.example.com",
		VariantB: "https://b2.example.com",
		Split:    20,
	})
	if err != nil {
		t.Fatalf("SetABTest replace: %v", err)
	}
	if link.Rules.ABTest.VariantA != "https://a2.example.com" || link.Rules.ABTest.Split != 20 {
		t.Errorf("abtest = %+v", link.Rules.ABTest)
	}

	link, err = svc.DeleteABTest("abx")
	if err != nil {
		t.Fatalf("DeleteABTest: %v", err)
	}
	if link.Rules != nil {
		t.Errorf("expected rules nil after delete, got %+v", link.Rules)
	}
}

func TestService_ArchiveLink(t *testing.T) {
	svc, inv, _ := newTestService(t)
	if _, err := svc.CreateLink(&CreateRequest{DestinationURL: "https://example.com", CustomSlug: "bye"}); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	if err := svc.ArchiveLink("bye"); err != nil {
		t.Fatalf("ArchiveLink: %v", err)
	}
	got, err := svc.GetLink("bye")
	if err != nil {
		t.Fatalf("GetLink: %v", err)
	}
	if got.Status != StatusArchived {
		t.Errorf("status = %s", got.Status)
	}
	if len(inv.slugs) == 0 {
		t.Error("cache not invalidated on archive")
	}

	if err := svc.ArchiveLink("never-existed"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
