package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ReplayDeliveryMessage]   = (*ReplayDeliveryCommand)(nil)
	_ gocmd.Commander[ReplayRetryReadyMessage] = (*ReplayRetryReadyCommand)(nil)
	_ gocmd.Commander[MarkDeliveryDeadMessage] = (*MarkDeliveryDeadCommand)(nil)
)
