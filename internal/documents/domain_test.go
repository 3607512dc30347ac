package documents

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-wms/meridian/internal/shared"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusPosted, true},
		{StatusDraft, StatusPendingApproval, true},
		{StatusDraft, StatusRejected, false},
		{StatusPendingApproval, StatusPosted, true},
		{StatusPendingApproval, StatusRejected, true},
		{StatusPendingApproval, StatusDraft, false},
		{StatusPosted, StatusDraft, false},
		{StatusPosted, StatusRejected, false},
		{StatusRejected, StatusDraft, false},
		{StatusRejected, StatusPosted, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestFormatNumber(t *testing.T) {
	require.Equal(t, "GRN-MAIN-2026-000042", FormatNumber(TypeGoodsReceipt, "MAIN", 2026, 42))
	require.Equal(t, "TRF-EXP-2025-000001", FormatNumber(TypeTransfer, "EXP", 2025, 1))
}

func validHeader(docType DocType) Document {
	doc := Document{
		Scope:       shared.Scope{CompanyID: 1, BranchID: 1},
		Type:        docType,
		Series:      "MAIN",
		DocDate:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		WarehouseID: 1,
	}
	if docType == TypeTransfer {
		doc.DestWarehouseID = 2
	}
	return doc
}

func TestValidateHeader(t *testing.T) {
	require.NoError(t, ValidateHeader(validHeader(TypeGoodsReceipt)))

	noDest := validHeader(TypeTransfer)
	noDest.DestWarehouseID = 0
	require.Error(t, ValidateHeader(noDest), "transfer needs destination")

	destOnShip := validHeader(TypeShipment)
	destOnShip.DestWarehouseID = 2
	require.Error(t, ValidateHeader(destOnShip))

	landedOnShip := validHeader(TypeShipment)
	landedOnShip.LandedCost = decimal.NewFromInt(50)
	require.Error(t, ValidateHeader(landedOnShip), "landed cost only on receipts")

	landedOnGRN := validHeader(TypeGoodsReceipt)
	landedOnGRN.LandedCost = decimal.NewFromInt(50)
	require.NoError(t, ValidateHeader(landedOnGRN))
}

func TestValidateLine(t *testing.T) {
	grnLine := Line{ItemID: 1, LocationID: 1, Qty: decimal.NewFromInt(5), UnitCost: decimal.NewFromInt(10)}
	require.NoError(t, ValidateLine(TypeGoodsReceipt, grnLine))

	noCost := grnLine
	noCost.UnitCost = decimal.Zero
	require.Error(t, ValidateLine(TypeGoodsReceipt, noCost), "receipt requires unit cost")

	shipLine := Line{ItemID: 1, LocationID: 1, Qty: decimal.NewFromInt(5)}
	require.NoError(t, ValidateLine(TypeShipment, shipLine))

	zeroQty := shipLine
	zeroQty.Qty = decimal.Zero
	require.Error(t, ValidateLine(TypeShipment, zeroQty))

	trfLine := Line{ItemID: 1, LocationID: 1, DestLocationID: 9, Qty: decimal.NewFromInt(2)}
	require.NoError(t, ValidateLine(TypeTransfer, trfLine))
	trfLine.DestLocationID = 0
	require.Error(t, ValidateLine(TypeTransfer, trfLine))

	countLine := Line{ItemID: 1, LocationID: 1, CountedQty: decimal.NewFromInt(7)}
	require.NoError(t, ValidateLine(TypeCount, countLine))
	countLine.CountedQty = decimal.NewFromInt(-1)
	require.Error(t, ValidateLine(TypeCount, countLine))

	serialLine := Line{ItemID: 1, LocationID: 1, SerialID: 3, Qty: decimal.NewFromInt(2), UnitCost: decimal.NewFromInt(1)}
	require.Error(t, ValidateLine(TypeGoodsReceipt, serialLine), "serial qty must be 1")
	serialLine.Qty = decimal.NewFromInt(1)
	require.NoError(t, ValidateLine(TypeGoodsReceipt, serialLine))
}
