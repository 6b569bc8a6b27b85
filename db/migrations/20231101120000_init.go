package migrations

import (
	"context"

	"github.com/tunga/taskpay/db/models"
	"github.com/uptrace/bun"
)

/* Since this init will reflect the latest model fields when run on fresh db
make sure that when you add/remove columns in subsequent migrations IfNotExists/IfExists is used
otherwise it's going to result in errors.
*/
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		tables := []interface{}{
			(*models.Task)(nil),
			(*models.Participation)(nil),
			(*models.WorkActivity)(nil),
			(*models.TaskPayment)(nil),
			(*models.ParticipantPayment)(nil),
			(*models.ClientNumber)(nil),
			(*models.TaskInvoice)(nil),
			(*models.BTCWallet)(nil),
			(*models.UserProfile)(nil),
		}
		for _, model := range tables {
			if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	}, nil)
}
