package common

const (
	TaskScopeTask    = "task"
	TaskScopeProject = "project"
	TaskScopeOngoing = "ongoing"

	// payment methods a client can use to pay for a task
	TaskPaymentMethodBitonic = "bitonic"
	TaskPaymentMethodBitcoin = "bitcoin"
	TaskPaymentMethodBank    = "bank"

	// payout methods a developer can configure on their profile
	PaymentMethodBTCWallet   = "btc_wallet"
	PaymentMethodBTCAddress  = "btc_address"
	PaymentMethodMobileMoney = "mobile_money"

	BTCWalletProviderCoinbase = "coinbase"

	CurrencyBTC = "BTC"
	CurrencyEUR = "EUR"
	CurrencyUSD = "USD"
	CurrencyUGX = "UGX"
	CurrencyTZS = "TZS"
	CurrencyNGN = "NGN"

	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"

	EventTypeTaskApproved         = "task.approved"
	EventTypeApplicationResponded = "application.responded"
	EventTypeInvitationAccepted   = "invitation.accepted"
	EventTypeProgressReported     = "progress.reported"
	EventTypePayoutDistributed    = "payout.distributed"
	EventTypeInvoiceNumbered      = "invoice.numbered"

	// routing keys of the task events that trigger jobs
	TaskEventPaid             = "task.paid"
	TaskEventPaymentReceived  = "task.payment.received"
	TaskEventPaymentConfirmed = "task.payment.confirmed"
	TaskEventInvoiceCreated   = "invoice.created"
)

var CurrencySymbols = map[string]string{
	CurrencyEUR: "€",
	CurrencyUSD: "$",
	CurrencyBTC: "฿",
	CurrencyUGX: "UGX ",
	CurrencyTZS: "TZS ",
	CurrencyNGN: "₦",
}
