package game

import (
	"errors"
	"fmt"
)

var (
	ErrPurchaseClosed   = errors.New("cards can only be purchased before the game starts")
	ErrCancelAfterStart = errors.New("cards can only be cancelled before the game starts")
	ErrCardLimitReached = errors.New("cartela limit for this player reached")
	ErrGameFull         = errors.New("game is full")
	ErrNotCardOwner     = errors.New("card does not belong to this player")
	ErrWrongGame        = errors.New("card does not belong to this game")
	ErrNumberNotDrawn   = errors.New("number has not been drawn yet")
	ErrRegistryClosed   = errors.New("game registry is shut down")
)

// InvalidCardLayoutError rejects a custom card whose columns violate the
// band, count or uniqueness rules.
type InvalidCardLayoutError struct {
	Column string
	Reason string
}

func (e *InvalidCardLayoutError) Error() string {
	return fmt.Sprintf("invalid card layout: column %s: %s", e.Column, e.Reason)
}

// ConsistencyError reports that a domain mutation committed but a boundary
// call that should have followed it failed. The mutation is not rolled
// back; the caller re-issues the side effect, never the mutation.
type ConsistencyError struct {
	Op  string
	Err error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("state updated but %s failed: %v", e.Op, e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }
