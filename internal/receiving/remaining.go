package receiving

import "fmt"

// RemainingReceivable is what a row may still receive on its PO line once
// the quantities claimed by the other rows of the same receipt are deducted
// from the backend's remaining quantity.
func RemainingReceivable(remainingFromState, claimedByOthers int64) int64 {
	return remainingFromState - claimedByOthers
}

// checkManualQuantity validates a received quantity typed into item index.
// It returns the inline message to show when the edit must be rejected.
func checkManualQuantity(items []GoodsReceiptItem, index int, qty int64, remaining RemainingState) (string, bool) {
	if qty <= 0 {
		return "Số lượng nhận phải lớn hơn 0", false
	}
	item := items[index]
	state, ok := remaining.Lookup(item.LineItemID)
	if !ok || state < 0 {
		return "", true
	}
	var others int64
	for i, other := range items {
		if i != index && other.LineItemID == item.LineItemID {
			others += other.ReceivedQty
		}
	}
	left := RemainingReceivable(state, others)
	if qty > left {
		return fmt.Sprintf("Số lượng nhận vượt quá số lượng còn cần nhập (%d)", max(left, 0)), false
	}
	return "", true
}
