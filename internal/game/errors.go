package game

import "errors"

var (
	ErrUnknownPlayer      = errors.New("unknown player")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrWrongState         = errors.New("action not allowed in current game state")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrInvalidPosition    = errors.New("position outside the board")
	ErrPositionOccupied   = errors.New("position already has a placed tile")
	ErrTileNotHeld        = errors.New("player does not hold that tile")
	ErrTileUnplayable     = errors.New("tile is unplayable and must be exchanged")
	ErrUnknownCorporation = errors.New("unknown corporation")
	ErrCorporationActive  = errors.New("corporation is already active")
	ErrCorporationRetired = errors.New("corporation is not active")
	ErrNoSharesLeft       = errors.New("no shares remaining")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNoMergeInProgress  = errors.New("no merge in progress")
	ErrNotShareholderTurn = errors.New("not this player's merger turn")
	ErrGameOver           = errors.New("game is over")
	ErrNotEnoughPlayers   = errors.New("not enough players")
)
