package journal

import (
	"context"
	"strings"
	"testing"
)

func TestSetGetTenant(t *testing.T) {
	ctx := context.Background()
	if got := GetTenant(ctx); got != "" {
		t.Errorf("GetTenant(empty ctx) = %q, want empty", got)
	}

	ctx = SetTenant(ctx, "alice")
	if got := GetTenant(ctx); got != "alice" {
		t.Errorf("GetTenant = %q, want alice", got)
	}

	ctx = SetTenant(ctx, "bob")
	if got := GetTenant(ctx); got != "bob" {
		t.Errorf("GetTenant = %q, want bob", got)
	}
}

func TestGetTenantNoCollision(t *testing.T) {
	ctx := context.WithValue(context.Background(), "tenant", "wrong")
	if got := GetTenant(ctx); got != "" {
		t.Errorf("GetTenant should not match string key, got %q", got)
	}
}

func TestVisible(t *testing.T) {
	if !Visible(context.Background(), "alice") {
		t.Error("single-tenant context should see every entry")
	}
	ctx := SetTenant(context.Background(), "alice")
	if !Visible(ctx, "alice") || Visible(ctx, "bob") {
		t.Error("tenant context should only see its own entries")
	}
}

func TestPrepare(t *testing.T) {
	a := &Attempt{ResolutionID: "res_x"}
	Prepare(SetTenant(context.Background(), "alice"), a)
	if !strings.HasPrefix(a.ID, "att_") {
		t.Errorf("ID = %q", a.ID)
	}
	if a.CreatedAt.IsZero() || a.TenantID != "alice" {
		t.Errorf("Prepare left fields empty: %+v", a)
	}

	b := &Attempt{ID: "att_fixed"}
	Prepare(context.Background(), b)
	if b.ID != "att_fixed" {
		t.Errorf("Prepare overwrote ID: %q", b.ID)
	}
}
