package spark

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"sparkledger/core/events"
	"sparkledger/core/types"
)

const (
	// EventTypePublish is emitted when a publisher creates a new issue.
	EventTypePublish = "spark.publish"
	// EventTypeTransfer is emitted on every ownership change; mints carry the
	// zero address as the sender.
	EventTypeTransfer = "spark.transfer"
	// EventTypeClaim is emitted when pooled profit is paid out.
	EventTypeClaim = "spark.claim"
	// EventTypeApproval is emitted when a single-edition approval changes.
	EventTypeApproval = "spark.approval"
	// EventTypeApprovalForAll is emitted when an operator approval changes.
	EventTypeApprovalForAll = "spark.approvalForAll"
	// EventTypeDeterminePrice is emitted when an owner lists a resale price.
	EventTypeDeterminePrice = "spark.determinePrice"
	// EventTypeDeterminePriceAndApprove is emitted when an owner lists a
	// resale price and approves the buyer in one step.
	EventTypeDeterminePriceAndApprove = "spark.determinePriceAndApprove"
	// EventTypeSetURI is emitted when an edition's content hash is replaced.
	EventTypeSetURI = "spark.setURI"
	// EventTypeLabel is emitted for free-form owner annotations.
	EventTypeLabel = "spark.label"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// EventPayload extracts the structured payload from an emitted event, if the
// event originated from this package.
func EventPayload(evt events.Event) *types.Event {
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		return carrier.Event()
	}
	return nil
}

func publishEvent(issue *Issue) *types.Event {
	return &types.Event{
		Type: EventTypePublish,
		Attributes: map[string]string{
			"issueId":     strconv.FormatUint(uint64(issue.ID), 10),
			"publisher":   issue.Publisher.Hex(),
			"rootTokenId": issue.RootTokenID().String(),
			"royaltyFee":  strconv.FormatUint(uint64(issue.RoyaltyFee), 10),
			"shillTimes":  strconv.FormatUint(uint64(issue.ShillTimes), 10),
			"price":       newBigInt(issue.FirstSellPrice).String(),
			"token":       issue.PaymentToken.Hex(),
		},
	}
}

func transferEvent(from, to common.Address, id TokenID) *types.Event {
	return &types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"from":    from.Hex(),
			"to":      to.Hex(),
			"tokenId": id.String(),
		},
	}
}

func claimEvent(id TokenID, receiver common.Address, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeClaim,
		Attributes: map[string]string{
			"tokenId":  id.String(),
			"receiver": receiver.Hex(),
			"amount":   amount,
		},
	}
}

func approvalEvent(owner, approved common.Address, id TokenID) *types.Event {
	return &types.Event{
		Type: EventTypeApproval,
		Attributes: map[string]string{
			"owner":    owner.Hex(),
			"approved": approved.Hex(),
			"tokenId":  id.String(),
		},
	}
}

func approvalForAllEvent(owner, operator common.Address, approved bool) *types.Event {
	value := "false"
	if approved {
		value = "true"
	}
	return &types.Event{
		Type: EventTypeApprovalForAll,
		Attributes: map[string]string{
			"owner":    owner.Hex(),
			"operator": operator.Hex(),
			"approved": value,
		},
	}
}

func determinePriceEvent(id TokenID, price string) *types.Event {
	return &types.Event{
		Type: EventTypeDeterminePrice,
		Attributes: map[string]string{
			"tokenId":       id.String(),
			"transferPrice": price,
		},
	}
}

func determinePriceAndApproveEvent(id TokenID, price string, to common.Address) *types.Event {
	return &types.Event{
		Type: EventTypeDeterminePriceAndApprove,
		Attributes: map[string]string{
			"tokenId":       id.String(),
			"transferPrice": price,
			"to":            to.Hex(),
		},
	}
}

func setURIEvent(id TokenID, hash common.Hash) *types.Event {
	return &types.Event{
		Type: EventTypeSetURI,
		Attributes: map[string]string{
			"tokenId": id.String(),
			"newHash": hash.Hex(),
		},
	}
}

func labelEvent(id TokenID, content string) *types.Event {
	return &types.Event{
		Type: EventTypeLabel,
		Attributes: map[string]string{
			"tokenId": id.String(),
			"content": content,
		},
	}
}
