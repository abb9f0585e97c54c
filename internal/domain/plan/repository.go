package plan

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// Repository defines payment plan persistence operations
type Repository interface {
	Create(ctx context.Context, p *Plan) error
	GetByID(ctx context.Context, id int64) (*Plan, error)
	ListByDebt(ctx context.Context, debtID int64) ([]*Plan, error)

	// LatestActiveToken returns the card token of the most recently created
	// active plan for the debt, for one-off charges outside any schedule
	LatestActiveToken(ctx context.Context, debtID int64) (string, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrPlanNotFound indicates missing payment plan
type ErrPlanNotFound struct {
	ID int64
}

func (e ErrPlanNotFound) Error() string {
	return "payment plan not found: " + strconv.FormatInt(e.ID, 10)
}

// ErrNoActiveToken indicates the debt has no active plan with a stored card token
type ErrNoActiveToken struct {
	DebtID int64
}

func (e ErrNoActiveToken) Error() string {
	return "no active payment plan with a card token for debt: " + strconv.FormatInt(e.DebtID, 10)
}
