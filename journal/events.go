package journal

// OrderEvent is one order-journal transition. Every broker response, real or
// simulated, lands in the ledger as exactly one of these.
type OrderEvent string

const (
	OENew       OrderEvent = "OE_NEW"
	OEAck       OrderEvent = "OE_ACK"
	OERej       OrderEvent = "OE_REJ"
	OEBrkRej    OrderEvent = "OE_BRK_REJ"
	OEExhRej    OrderEvent = "OE_EXH_REJ"
	OECxl       OrderEvent = "OE_CXL"
	OECxlAck    OrderEvent = "OE_CXL_ACK"
	OECxlRej    OrderEvent = "OE_CXL_REJ"
	OECxlIntRej OrderEvent = "OE_CXL_INT_REJ"
	OECxlBrkRej OrderEvent = "OE_CXL_BRK_REJ"
	OECxlExhRej OrderEvent = "OE_CXL_EXH_REJ"
	OEUnsolCxl  OrderEvent = "OE_UNSOL_CXL"
	OEAmdAck    OrderEvent = "OE_AMD_ACK"
	OEAmdRej    OrderEvent = "OE_AMD_REJ"
	OELapse     OrderEvent = "OE_LAPSE"
	OEIntRej    OrderEvent = "OE_INT_REJ"
)

// OrderStatus is the order state derived from the newest journal event plus
// fill accumulation.
type OrderStatus string

const (
	StatusUnack      OrderStatus = "UNACK"
	StatusAcked      OrderStatus = "ACKED"
	StatusFilled     OrderStatus = "FILLED"
	StatusOverFilled OrderStatus = "OVER_FILLED"
	StatusDOD        OrderStatus = "DOD"
)

// IsOpen reports whether an order in this status still belongs in the
// open-order index.
func (s OrderStatus) IsOpen() bool {
	return s != StatusDOD && s != StatusFilled
}

// StatusAfter maps an order event onto the status it leaves the order in.
// Fill-driven transitions (FILLED, OVER_FILLED) are not derivable from an
// event alone and are applied by the snapshot holder.
func StatusAfter(ev OrderEvent) OrderStatus {
	switch ev {
	case OENew:
		return StatusUnack
	case OEAck, OECxl, OECxlRej, OECxlIntRej, OECxlBrkRej, OECxlExhRej, OEAmdAck, OEAmdRej:
		return StatusAcked
	case OERej, OEBrkRej, OEExhRej, OEIntRej, OECxlAck, OEUnsolCxl, OELapse:
		return StatusDOD
	default:
		return StatusUnack
	}
}
