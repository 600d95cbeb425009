package domain

import "github.com/google/uuid"

type OwnerID = uuid.UUID
type ClaimID = uuid.UUID
type ListingID = uuid.UUID
type TokenID = uuid.UUID
