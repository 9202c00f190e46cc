// Package messaging maps domain objects onto protocol envelopes and
// publishes them through the shared broker handle.
package messaging

// Broker topology shared by every service. Exchanges are durable
// topic exchanges; routing keys equal the message types.
const (
	WalletCommandExchange = "wallet_commands"
	WalletEventExchange   = "wallet_events"
	TransferEventExchange = "transfer_events"

	WalletCommandQueue = "wallet_command_queue"
	WalletResultQueue  = "transfer_wallet_result_queue"
	AuditQueue         = "transfer_audit_queue"

	WalletCommandBinding = "wallet.*.command"
	WalletResultBinding  = "wallet.transaction.*"
	TransferEventBinding = "transfer.#"
)
