package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parcels/internal/domain"
	impl "parcels/internal/service/impl"
	"parcels/internal/store"

	"github.com/spf13/cobra"
)

type claimReport struct {
	ClaimID     string          `json:"claim_id"`
	Unit        string          `json:"unit"`
	OwnerID     string          `json:"owner_id"`
	OwnerEmail  string          `json:"owner_email"`
	Price       int64           `json:"price"`
	Currency    string          `json:"currency"`
	Title       string          `json:"title,omitempty"`
	CertHash    string          `json:"cert_hash"`
	CertURL     string          `json:"cert_url"`
	CreatedAt   time.Time       `json:"created_at"`
	History     []historyReport `json:"history"`
	ActiveToken bool            `json:"active_transfer_code"`
}

type historyReport struct {
	Kind      string    `json:"kind"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	At        time.Time `json:"at"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

func newClaimCommand(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Inspect and release claims",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <unit>",
		Short: "Print a claim, its owner and its transfer history",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			rep, err := showClaim(ctx, e.Store, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "release <unit>",
		Short: "Release a claim regardless of its owner",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			c, err := impl.NewClaimService(e.Deps).OperatorRelease(ctx, args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "released %s (claim %s, owner %s)\n", c.Unit().Key(), c.ID, c.OwnerID)
			return err
		}),
	})
	return cmd
}

func newTransferCodeCommand(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer-code",
		Short: "Manage transfer codes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "issue <unit>",
		Short: "Issue a transfer code on behalf of the current owner",
		Long:  "Revokes any active code for the claim and prints the new one. The code is shown only once.",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			c, err := findClaim(ctx, e.Store, args[0])
			if err != nil {
				return err
			}
			res, err := impl.NewTransferService(e.Deps).IssueCode(ctx, c.OwnerID, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	})
	return cmd
}

func findClaim(ctx context.Context, st *store.Store, unitKey string) (*domain.Claim, error) {
	u, err := domain.ParseUnit(unitKey)
	if err != nil {
		return nil, err
	}
	c, err := st.Claims().GetByTS(ctx, u.TS)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no claim for %s", domain.ErrNotFound, u.Key())
	}
	return c, err
}

func showClaim(ctx context.Context, st *store.Store, unitKey string) (*claimReport, error) {
	c, err := findClaim(ctx, st, unitKey)
	if err != nil {
		return nil, err
	}
	owner, err := st.Owners().GetByID(ctx, c.OwnerID)
	if err != nil {
		return nil, err
	}
	hist, err := st.History().ListByTS(ctx, c.TS)
	if err != nil {
		return nil, err
	}
	tokens, err := st.TransferTokens().ListByClaim(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	rep := &claimReport{
		ClaimID:    c.ID.String(),
		Unit:       c.Unit().Key(),
		OwnerID:    c.OwnerID.String(),
		OwnerEmail: owner.Email,
		Price:      c.Price,
		Currency:   c.Currency,
		Title:      c.Title,
		CertHash:   c.CertHash,
		CertURL:    c.CertURL,
		CreatedAt:  c.CreatedAt,
		History:    make([]historyReport, 0, len(hist)),
	}
	for i := range tokens {
		if tokens[i].IsActive() {
			rep.ActiveToken = true
		}
	}
	for _, h := range hist {
		rep.History = append(rep.History, historyReport{
			Kind:      string(h.Kind),
			From:      h.FromOwner.String(),
			To:        h.ToOwner.String(),
			At:        h.CreatedAt,
			IP:        h.IP,
			UserAgent: h.UserAgent,
		})
	}
	return rep, nil
}
