package delivery_test

import (
	"context"
	"errors"
	"testing"

	"vignette/internal/delivery"
	"vignette/internal/logging"
	"vignette/internal/review"
)

func bindingNames(bindings []review.ChannelBinding) []string {
	names := make([]string, 0, len(bindings))
	for _, b := range bindings {
		names = append(names, b.Name)
	}
	return names
}

func TestResolveChannelsProjectPinWins(t *testing.T) {
	bindings := []review.ChannelBinding{
		{Name: "global", Kind: review.ChannelDiscord, Target: "g"},
		{Name: "pinned", Kind: review.ChannelDiscord, Target: "p", ProjectID: "alpha"},
	}
	got := delivery.ResolveChannels(bindings, "alpha", nil, nil)
	if names := bindingNames(got); len(names) != 1 || names[0] != "pinned" {
		t.Fatalf("expected pinned binding only, got %v", names)
	}

	// A pin for a different project is invisible to other projects.
	got = delivery.ResolveChannels(bindings, "beta", nil, nil)
	if names := bindingNames(got); len(names) != 1 || names[0] != "global" {
		t.Fatalf("expected global binding, got %v", names)
	}
}

func TestResolveChannelsMentionIntersection(t *testing.T) {
	bindings := []review.ChannelBinding{
		{Name: "animators", Kind: review.ChannelDiscord, Target: "a", Roles: []string{"animation"}},
		{Name: "lighting", Kind: review.ChannelDiscord, Target: "l", Roles: []string{"lighting"}},
	}
	got := delivery.ResolveChannels(bindings, "alpha", nil, []string{"Animation"})
	if names := bindingNames(got); len(names) != 1 || names[0] != "animators" {
		t.Fatalf("expected role match, got %v", names)
	}
}

func TestResolveChannelsProjectRoleIntersection(t *testing.T) {
	bindings := []review.ChannelBinding{
		{Name: "lighting", Kind: review.ChannelDiscord, Target: "l", Roles: []string{"lighting"}},
		{Name: "catchall", Kind: review.ChannelDiscord, Target: "c", Default: true},
	}

	// The project's own roles match a role-filtered binding even without a
	// mention.
	got := delivery.ResolveChannels(bindings, "alpha", []string{"Lighting"}, nil)
	if names := bindingNames(got); len(names) != 1 || names[0] != "lighting" {
		t.Fatalf("expected project-role match, got %v", names)
	}
}

func TestResolveChannelsDefaultFallback(t *testing.T) {
	bindings := []review.ChannelBinding{
		{Name: "animators", Kind: review.ChannelDiscord, Target: "a", Roles: []string{"animation"}},
		{Name: "catchall", Kind: review.ChannelDiscord, Target: "c", Roles: []string{"ops"}, Default: true},
	}
	got := delivery.ResolveChannels(bindings, "alpha", nil, nil)
	if names := bindingNames(got); len(names) != 1 || names[0] != "catchall" {
		t.Fatalf("expected default fallback, got %v", names)
	}

	// No default, no match: drop.
	if got := delivery.ResolveChannels(bindings[:1], "alpha", nil, nil); len(got) != 0 {
		t.Fatalf("expected drop with no resolvable channel, got %v", bindingNames(got))
	}
}

type fakeSender struct {
	sends []fakeSend
	err   error
}

type fakeSend struct {
	target string
	msg    delivery.Message
}

func (f *fakeSender) Send(_ context.Context, target string, msg delivery.Message) error {
	f.sends = append(f.sends, fakeSend{target: target, msg: msg})
	return f.err
}

func TestDeliverNowSendsToResolvedBindings(t *testing.T) {
	sender := &fakeSender{}
	router := delivery.NewRouter(map[review.ChannelKind]delivery.Sender{review.ChannelDiscord: sender}, "https://review.example.test", logging.NewNop())

	tenant := &review.TenantDigestConfig{TenantID: "studio-a"}
	bindings := []review.ChannelBinding{
		{Name: "ops", Kind: review.ChannelDiscord, Target: "https://hook/ops"},
	}
	event := commentEvent(t, "alpha", "mira", "ready for review")

	if err := router.DeliverNow(context.Background(), tenant, bindings, event); err != nil {
		t.Fatalf("DeliverNow: %v", err)
	}
	if len(sender.sends) != 1 || sender.sends[0].target != "https://hook/ops" {
		t.Fatalf("unexpected sends: %+v", sender.sends)
	}
	if sender.sends[0].msg.Subject != "Comment Create" {
		t.Fatalf("unexpected subject: %q", sender.sends[0].msg.Subject)
	}
}

func TestDeliverNowMatchesProjectRoles(t *testing.T) {
	sender := &fakeSender{}
	router := delivery.NewRouter(map[review.ChannelKind]delivery.Sender{review.ChannelDiscord: sender}, "", logging.NewNop())

	tenant := &review.TenantDigestConfig{
		TenantID:     "studio-a",
		ProjectRoles: []review.ProjectRoleSet{{ProjectID: "alpha", Roles: []string{"animation"}}},
	}
	bindings := []review.ChannelBinding{
		{Name: "animators", Kind: review.ChannelDiscord, Target: "https://hook/anim", Roles: []string{"animation"}},
	}
	event := commentEvent(t, "alpha", "mira", "walk cycle pass")

	if err := router.DeliverNow(context.Background(), tenant, bindings, event); err != nil {
		t.Fatalf("DeliverNow: %v", err)
	}
	if len(sender.sends) != 1 || sender.sends[0].target != "https://hook/anim" {
		t.Fatalf("expected project-role delivery, got %+v", sender.sends)
	}
}

func TestSendSwallowsTransportErrors(t *testing.T) {
	sender := &fakeSender{err: errors.New("boom")}
	router := delivery.NewRouter(map[review.ChannelKind]delivery.Sender{review.ChannelDiscord: sender}, "", logging.NewNop())

	binding := review.ChannelBinding{Name: "ops", Kind: review.ChannelDiscord, Target: "https://hook/ops"}
	router.Send(context.Background(), "studio-a", binding, delivery.Message{Subject: "x"})
	if len(sender.sends) != 1 {
		t.Fatalf("expected send attempt, got %d", len(sender.sends))
	}

	// Unknown kind is a logged no-op.
	router.Send(context.Background(), "studio-a", review.ChannelBinding{Kind: review.ChannelEmail}, delivery.Message{})
}

func TestDeliverDigestFiltersByKind(t *testing.T) {
	discord := &fakeSender{}
	email := &fakeSender{}
	router := delivery.NewRouter(map[review.ChannelKind]delivery.Sender{
		review.ChannelDiscord: discord,
		review.ChannelEmail:   email,
	}, "", logging.NewNop())

	tenant := &review.TenantDigestConfig{
		TenantID: "studio-a",
		Bindings: []review.ChannelBinding{
			{Name: "team", Kind: review.ChannelDiscord, Target: "https://hook/team"},
			{Name: "weekly", Kind: review.ChannelEmail, Target: "crew@example.test"},
		},
	}

	router.DeliverDigest(context.Background(), tenant, review.ChannelDiscord, "alpha", delivery.Message{Subject: "digest"})
	if len(discord.sends) != 1 || len(email.sends) != 0 {
		t.Fatalf("expected discord-only delivery, got discord=%d email=%d", len(discord.sends), len(email.sends))
	}
}

func TestDeliverDigestReachesRoleFilteredBinding(t *testing.T) {
	sender := &fakeSender{}
	router := delivery.NewRouter(map[review.ChannelKind]delivery.Sender{review.ChannelDiscord: sender}, "", logging.NewNop())

	tenant := &review.TenantDigestConfig{
		TenantID:     "studio-a",
		ProjectRoles: []review.ProjectRoleSet{{ProjectID: "alpha", Roles: []string{"lighting"}}},
		Bindings: []review.ChannelBinding{
			{Name: "lighting", Kind: review.ChannelDiscord, Target: "https://hook/light", Roles: []string{"lighting"}},
			{Name: "catchall", Kind: review.ChannelDiscord, Target: "https://hook/all", Default: true},
		},
	}

	router.DeliverDigest(context.Background(), tenant, review.ChannelDiscord, "alpha", delivery.Message{Subject: "digest"})
	if len(sender.sends) != 1 || sender.sends[0].target != "https://hook/light" {
		t.Fatalf("expected role-filtered binding to receive the digest, got %+v", sender.sends)
	}

	// Without a role mapping the same digest falls back to the default.
	sender.sends = nil
	tenant.ProjectRoles = nil
	router.DeliverDigest(context.Background(), tenant, review.ChannelDiscord, "alpha", delivery.Message{Subject: "digest"})
	if len(sender.sends) != 1 || sender.sends[0].target != "https://hook/all" {
		t.Fatalf("expected default fallback without project roles, got %+v", sender.sends)
	}
}
