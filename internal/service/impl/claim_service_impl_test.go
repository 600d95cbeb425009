package impl

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"parcels/internal/domain"
	"parcels/internal/dto"
	"parcels/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseCleansUpAndFreesUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.buy(t, "2030-05-01", "alice@example.com", asPublic)
	alice := f.owner(t, "alice@example.com")
	bob := f.newOwner(t, "bob@example.com")

	// Leave history, a listing and a live token behind.
	issued, err := f.transfers.IssueCode(ctx, alice.ID, "2030-05-01")
	require.NoError(t, err)
	_, err = f.transfers.Redeem(ctx, alice.ID, dto.TransferRequest{ClaimID: issued.ClaimID, CertHash: issued.CertHash, Code: issued.Code}, "", "")
	require.NoError(t, err)
	_, err = f.market.UpsertListing(ctx, alice.ID, dto.ListingRequest{Unit: "2030-05-01", Price: 1000})
	require.NoError(t, err)
	_, err = f.transfers.IssueCode(ctx, alice.ID, "2030-05-01")
	require.NoError(t, err)
	old := f.claim(t, "2030-05-01")

	assert.ErrorIs(t, f.claims.Release(ctx, bob.ID, "2030-05-01"), domain.ErrForbidden)
	require.NoError(t, f.claims.Release(ctx, alice.ID, "2030-05-01"))
	assert.ErrorIs(t, f.claims.Release(ctx, alice.ID, "2030-05-01"), domain.ErrNotFound)

	n, err := f.store.Claims().CountByTS(ctx, old.TS)
	require.NoError(t, err)
	assert.Zero(t, n)
	listings, err := f.store.Listings().ListByTS(ctx, old.TS)
	require.NoError(t, err)
	assert.Empty(t, listings)
	tokens, err := f.store.TransferTokens().ListByClaim(ctx, old.ID)
	require.NoError(t, err)
	assert.Empty(t, tokens)
	hist, err := f.store.History().ListByTS(ctx, old.TS)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
	page, err := f.claims.Registry(ctx, dto.RegistryQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Contains(t, f.events.Subjects(), events.SubjectClaimReleased)

	avail, err := f.claims.Availability(ctx, "2030-05-01")
	require.NoError(t, err)
	assert.True(t, avail.Available)

	res := f.buy(t, "2030-05-01", "bob@example.com")
	assert.True(t, res.Created)
	assert.Equal(t, bob.ID, f.claim(t, "2030-05-01").OwnerID)
}

func TestOperatorRelease(t *testing.T) {
	f := newFixture(t)
	f.buy(t, "2030-05-01T10:30", "alice@example.com")

	c, err := f.claims.OperatorRelease(context.Background(), "2030-05-01T10:30Z")
	require.NoError(t, err)
	assert.Equal(t, "2030-05-01T10:30Z", c.Unit().Key())

	_, err = f.claims.PublicView(context.Background(), "2030-05-01T10:30")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAvailabilityAndPublicView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.buy(t, "2030-05-01", "alice@example.com", func(r *dto.CheckoutRequest) {
		r.DisplayName = "Alice"
		r.Message = "our day"
	})

	avail, err := f.claims.Availability(ctx, "2030-05-01")
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Equal(t, int64(500), avail.Price)

	avail, err = f.claims.Availability(ctx, "2030-05-01T00:01")
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.Equal(t, int64(200), avail.Price)

	_, err = f.claims.Availability(ctx, "tomorrow")
	assert.ErrorIs(t, err, domain.ErrValidation)

	v, err := f.claims.PublicView(ctx, "2030-05-01")
	require.NoError(t, err)
	assert.Equal(t, "Alice", v.OwnerName)
	assert.Equal(t, "our day", v.Message)
	assert.Equal(t, "day", v.Granularity)
	assert.False(t, v.Public)
}

func TestUpdateClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.buy(t, "2030-05-01", "alice@example.com")
	alice := f.owner(t, "alice@example.com")
	bob := f.newOwner(t, "bob@example.com")

	title, public := "renamed", dto.FlexBool(true)
	out, err := f.claims.Update(ctx, alice.ID, "2030-05-01", dto.ClaimUpdateRequest{Title: &title, Public: &public})
	require.NoError(t, err)
	assert.Equal(t, "renamed", out.Title)
	assert.True(t, out.Public)

	page, err := f.claims.Registry(ctx, dto.RegistryQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "renamed", page.Items[0].Title)

	// Editing without touching public keeps the entry in sync.
	style := "floral"
	_, err = f.claims.Update(ctx, alice.ID, "2030-05-01", dto.ClaimUpdateRequest{Style: &style})
	require.NoError(t, err)
	page, err = f.claims.Registry(ctx, dto.RegistryQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "floral", page.Items[0].Style)

	hidden := dto.FlexBool(false)
	_, err = f.claims.Update(ctx, alice.ID, "2030-05-01", dto.ClaimUpdateRequest{Public: &hidden})
	require.NoError(t, err)
	page, err = f.claims.Registry(ctx, dto.RegistryQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	link := "javascript:alert(1)"
	_, err = f.claims.Update(ctx, alice.ID, "2030-05-01", dto.ClaimUpdateRequest{Link: &link})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.claims.Update(ctx, bob.ID, "2030-05-01", dto.ClaimUpdateRequest{Title: &title})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	mine, err := f.claims.ListMine(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "floral", mine[0].Style)
	assert.NotEmpty(t, mine[0].CertHash)
}

func TestRegistryFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buy := func(unit, title, style string) {
		f.buy(t, unit, "alice@example.com", asPublic, func(r *dto.CheckoutRequest) {
			r.Title = title
			r.Style = style
		})
	}
	buy("2030-01-01", "New Year", "classic")
	buy("2030-01-01T12:00", "Lunch 100%", "night")
	buy("2030-02-14", "Valentine", "floral")
	buy("2030-03-01T08:15", "Morning", "night")

	list := func(q dto.RegistryQuery) []string {
		page, err := f.claims.Registry(ctx, q)
		require.NoError(t, err)
		var units []string
		for _, it := range page.Items {
			units = append(units, it.Unit)
		}
		return units
	}

	assert.Equal(t, []string{"2030-03-01T08:15Z", "2030-02-14", "2030-01-01T12:00Z", "2030-01-01"}, list(dto.RegistryQuery{}))
	assert.Equal(t, []string{"2030-03-01T08:15Z", "2030-01-01T12:00Z"}, list(dto.RegistryQuery{Granularity: "minute"}))
	assert.Equal(t, []string{"2030-01-01T12:00Z"}, list(dto.RegistryQuery{Query: "100%"}))
	assert.Equal(t, []string{"2030-02-14"}, list(dto.RegistryQuery{Query: "VALENT"}))
	assert.Equal(t, []string{"2030-01-01T12:00Z", "2030-01-01"}, list(dto.RegistryQuery{To: "2030-01-01"}))
	assert.Equal(t, []string{"2030-03-01T08:15Z", "2030-02-14"}, list(dto.RegistryQuery{From: "2030-01-02"}))
	assert.Equal(t, []string{"2030-03-01T08:15Z", "2030-01-01T12:00Z"}, list(dto.RegistryQuery{Style: "night"}))

	first, err := f.claims.Registry(ctx, dto.RegistryQuery{Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Items, 3)
	rest, err := f.claims.Registry(ctx, dto.RegistryQuery{Limit: 3, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Equal(t, "2030-01-01", rest.Items[0].Unit)
	assert.Empty(t, rest.NextCursor)

	_, err = f.claims.Registry(ctx, dto.RegistryQuery{Granularity: "hour"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCertificate(t *testing.T) {
	f := newFixture(t)
	res := f.buy(t, "2030-05-01", "alice@example.com")

	cert, err := f.claims.Certificate(context.Background(), "2030-05-01", "ja-JP,ja;q=0.9")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(cert.Body, []byte("%PDF")))
	// No font is configured, so English is used whatever was asked for.
	assert.Equal(t, "en", cert.Lang)
	assert.True(t, strings.HasSuffix(cert.ETag, `-en"`), cert.ETag)

	_, err = f.claims.Certificate(context.Background(), "2030-05-02", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	again, err := f.claims.Certificate(context.Background(), "2030-05-01", "")
	require.NoError(t, err)
	assert.Equal(t, cert.ETag, again.ETag)

	alice := f.owner(t, "alice@example.com")
	title := "new title"
	_, err = f.claims.Update(context.Background(), alice.ID, "2030-05-01", dto.ClaimUpdateRequest{Title: &title})
	require.NoError(t, err)
	edited, err := f.claims.Certificate(context.Background(), "2030-05-01", "")
	require.NoError(t, err)
	assert.NotEqual(t, cert.ETag, edited.ETag)
	assert.Equal(t, res.CertHash, f.claim(t, "2030-05-01").CertHash)

	name := "Alice"
	_, err = f.auth.UpdateProfile(context.Background(), alice.ID, dto.ProfileUpdateRequest{DisplayName: &name})
	require.NoError(t, err)
	renamed, err := f.claims.Certificate(context.Background(), "2030-05-01", "")
	require.NoError(t, err)
	assert.NotEqual(t, edited.ETag, renamed.ETag)
}
