package seed

import (
	"context"
	"fmt"

	"github.com/johnwards/stagetrack/internal/domain"
	"github.com/johnwards/stagetrack/internal/store"
)

// seedActor is the user id recorded on demo data.
const seedActor = 1

type demo struct {
	stage  domain.Stage
	status string
	fields map[string]any
	// from, when set, names the index in demos of the upstream record this
	// one was migrated from. The upstream record is flagged as migrated.
	from *int
}

func from(i int) *int { return &i }

var demos = []demo{
	0: {domain.StageConsultation, domain.StatusWaiting, map[string]any{
		"customer_name": "Bean There Cafe", "phone": "010-1111-2222", "inflow_source": "website", "region": "Seoul", "business_type": "cafe",
	}, nil},
	1: {domain.StageConsultation, domain.StatusInProgress, map[string]any{
		"customer_name": "Nightly Laundry", "phone": "010-3333-4444", "inflow_source": "referral", "region": "Busan", "business_type": "laundromat",
	}, nil},
	2: {domain.StageConsultation, domain.StatusHold, map[string]any{
		"customer_name": "Study Box", "region": "Daegu", "business_type": "study cafe", "notes": "waiting on lease",
	}, nil},
	3: {domain.StageConsultation, domain.StatusCompleted, map[string]any{
		"customer_name": "Ice Corner", "phone": "010-5555-6666", "inflow_source": "ads", "region": "Incheon", "business_type": "ice cream",
	}, nil},
	4: {domain.StageConsultation, domain.StatusCompleted, map[string]any{
		"customer_name": "Pet Wash 24", "phone": "010-7777-8888", "inflow_source": "website", "region": "Seoul", "business_type": "pet care",
	}, nil},
	5: {domain.StageConsultation, domain.StatusCancelled, map[string]any{
		"customer_name": "Closed Deal", "region": "Ulsan",
	}, nil},
	6: {domain.StageContract, domain.StatusSignaturePending, map[string]any{
		"customer_name": "Pet Wash 24", "phone": "010-7777-8888", "inflow_source": "website", "region": "Seoul", "business_type": "pet care",
		"contract_amount": "12000000", "deposit_amount": "1200000", "monthly_fee": "150000",
	}, from(4)},
	7: {domain.StageContract, domain.StatusWaiting, map[string]any{
		"customer_name": "Quick Print", "region": "Gwangju", "contract_amount": "8500000", "pre_installation": true,
	}, nil},
	8: {domain.StageContract, domain.StatusCompleted, map[string]any{
		"customer_name": "Snack Stop", "region": "Daejeon", "contract_amount": "9900000", "monthly_fee": "99000",
	}, nil},
	9: {domain.StageInstallation, domain.StatusCompleted, map[string]any{
		"customer_name": "Book Nook", "region": "Suwon", "install_address": "12 Library-ro", "install_date": "2024-02-14",
		"contract_amount": "7000000", "contract_completed": true, "kiosk_count": 2, "terminal_count": 1, "camera_count": 4,
	}, nil},
	10: {domain.StageOperation, "", map[string]any{
		"customer_name": "Fresh Mart", "region": "Seongnam", "install_address": "3 Market-gil", "open_date": "2024-01-20",
		"kiosk_count": 1, "contract_completed": true, "install_cert_received": true,
	}, nil},
	11: {domain.StageFranchise, domain.StatusActive, map[string]any{
		"customer_name": "Coin Karaoke", "region": "Seoul", "install_address": "88 Music-ro", "open_date": "2023-11-01", "monthly_fee": "120000",
	}, nil},
}

// Seed inserts a small demo pipeline if every stage is empty. It is
// idempotent: a database that already holds records is left untouched.
func Seed(ctx context.Context, rs store.RecordStore) error {
	for _, stage := range domain.Stages {
		page, err := rs.List(ctx, stage, domain.ListOpts{Limit: 1, CancelledLimit: 1})
		if err != nil {
			return fmt.Errorf("check %s: %w", stage, err)
		}
		if len(page.Results) > 0 || len(page.Cancelled) > 0 {
			return nil
		}
	}

	return rs.InTx(ctx, func(tx store.RecordStore) error {
		ids := make([]int64, len(demos))
		for i, d := range demos {
			rec := &domain.Record{Stage: d.stage, Status: d.status, Fields: d.fields, CreatedBy: seedActor}
			if d.from != nil {
				up := demos[*d.from]
				src := ids[*d.from]
				if _, err := tx.Claim(ctx, up.stage, src); err != nil {
					return fmt.Errorf("flag %s %d: %w", up.stage, src, err)
				}
				rec.SourceID = &src
			}
			created, err := tx.Insert(ctx, rec)
			if err != nil {
				return fmt.Errorf("insert %s %q: %w", d.stage, d.fields["customer_name"], err)
			}
			ids[i] = created.ID
		}
		return nil
	})
}
