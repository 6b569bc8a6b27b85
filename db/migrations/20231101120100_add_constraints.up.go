package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {

		if db.Dialect().Name().String() != "pg" {
			fmt.Printf("\033[1;31m%s\033[0m", "You are not using PostgreSQL. DB level checks can not be enabled!\n")
			return nil
		}
		sql := `
			-- a leg only moves through the known states
				alter table participant_payments
				ADD CONSTRAINT check_leg_status
				CHECK (status IN ('pending', 'processing', 'completed', 'failed'));

			-- amounts never go negative
				alter table participant_payments
				ADD CONSTRAINT check_leg_amounts
				CHECK ((btc_sent IS NULL OR btc_sent >= 0) AND btc_received >= 0 AND attempts >= 0);
				alter table task_payments
				ADD CONSTRAINT check_payment_amount
				CHECK (btc_received >= 0);

			-- participation shares are weights
				alter table participations
				ADD CONSTRAINT check_share
				CHECK (share IS NULL OR share >= 0);
		`
		if _, err := db.Exec(sql); err != nil {
			return err
		}
		return nil
	}, nil)
}
