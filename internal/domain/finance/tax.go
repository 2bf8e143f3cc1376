package finance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
)

// VATCategory selects the VAT rate applied to a line item
type VATCategory string

const (
	VATCategoryStandard  VATCategory = "STANDARD"
	VATCategoryReduced   VATCategory = "REDUCED"
	VATCategoryTruncated VATCategory = "TRUNCATED"
	VATCategoryZeroRated VATCategory = "ZERO_RATED"
	VATCategoryExempt    VATCategory = "EXEMPT"
)

var vatRates = map[VATCategory]decimal.Decimal{
	VATCategoryStandard:  decimal.RequireFromString("0.15"),
	VATCategoryReduced:   decimal.RequireFromString("0.075"),
	VATCategoryTruncated: decimal.RequireFromString("0.05"),
	VATCategoryZeroRated: decimal.Zero,
	VATCategoryExempt:    decimal.Zero,
}

// Rate returns the statutory rate for the category
func (c VATCategory) Rate() (decimal.Decimal, bool) {
	r, ok := vatRates[c]
	return r, ok
}

// IsValid checks if the category is known
func (c VATCategory) IsValid() bool {
	_, ok := vatRates[c]
	return ok
}

// IsAllowedVATRate reports whether rate is one of the legal Bangladesh VAT rates: 0, 5%, 7.5% or 15%
func IsAllowedVATRate(rate decimal.Decimal) bool {
	for _, r := range vatRates {
		if r.Equal(rate) {
			return true
		}
	}
	return false
}

// ProductCategory drives supplementary duty
type ProductCategory string

const (
	ProductCategoryGeneral     ProductCategory = "GENERAL"
	ProductCategoryLuxury      ProductCategory = "LUXURY"
	ProductCategoryTobacco     ProductCategory = "TOBACCO"
	ProductCategoryBeverage    ProductCategory = "BEVERAGE"
	ProductCategoryElectronics ProductCategory = "ELECTRONICS"
)

var defaultSupplementaryDutyRates = map[ProductCategory]decimal.Decimal{
	ProductCategoryLuxury:      decimal.RequireFromString("0.20"),
	ProductCategoryTobacco:     decimal.RequireFromString("0.65"),
	ProductCategoryBeverage:    decimal.RequireFromString("0.25"),
	ProductCategoryElectronics: decimal.RequireFromString("0.10"),
}

// AttractsSupplementaryDuty reports whether SD applies to the category at all
func (c ProductCategory) AttractsSupplementaryDuty() bool {
	_, ok := defaultSupplementaryDutyRates[c]
	return ok
}

// VendorType selects TDS and AIT withholding rates
type VendorType string

const (
	VendorTypeSupplier     VendorType = "SUPPLIER"
	VendorTypeContractor   VendorType = "CONTRACTOR"
	VendorTypeProfessional VendorType = "PROFESSIONAL"
	VendorTypeRent         VendorType = "RENT"
	VendorTypeTransport    VendorType = "TRANSPORT"
	VendorTypeImporter     VendorType = "IMPORTER"
	VendorTypeExporter     VendorType = "EXPORTER"
)

var tdsRates = map[VendorType]decimal.Decimal{
	VendorTypeSupplier:     decimal.RequireFromString("0.05"),
	VendorTypeContractor:   decimal.RequireFromString("0.07"),
	VendorTypeProfessional: decimal.RequireFromString("0.10"),
	VendorTypeRent:         decimal.RequireFromString("0.05"),
	VendorTypeTransport:    decimal.RequireFromString("0.03"),
	VendorTypeImporter:     decimal.Zero,
	VendorTypeExporter:     decimal.Zero,
}

var aitRates = map[VendorType]decimal.Decimal{
	VendorTypeImporter: decimal.RequireFromString("0.05"),
	VendorTypeExporter: decimal.RequireFromString("0.01"),
}

// IsValid checks if the vendor type is known
func (v VendorType) IsValid() bool {
	_, ok := tdsRates[v]
	return ok
}

// DefaultNoTINMultiplier scales the TDS/AIT rate for payees without a TIN
var DefaultNoTINMultiplier = decimal.RequireFromString("1.5")

// TaxConfig parameterizes the tax service
type TaxConfig struct {
	// NoTINMultiplier is applied to TDS and AIT rates when the payee has no TIN.
	// Zero means DefaultNoTINMultiplier.
	NoTINMultiplier decimal.Decimal
	// RoundingPlaces is the precision of computed tax amounts
	RoundingPlaces int32
}

// TaxCalculationService computes VAT, supplementary duty and withholding taxes.
// It holds no mutable state.
type TaxCalculationService struct {
	noTINMultiplier decimal.Decimal
	places          int32
}

// NewTaxCalculationService creates a tax service
func NewTaxCalculationService(cfg TaxConfig) *TaxCalculationService {
	m := cfg.NoTINMultiplier
	if m.IsZero() {
		m = DefaultNoTINMultiplier
	}
	places := cfg.RoundingPlaces
	if places <= 0 {
		places = 2
	}
	return &TaxCalculationService{noTINMultiplier: m, places: places}
}

// VATResult holds a VAT computation
type VATResult struct {
	Rate   decimal.Decimal
	Amount valueobject.Money
}

// CalculateVAT computes VAT for amount under category
func (s *TaxCalculationService) CalculateVAT(amount valueobject.Money, category VATCategory) (VATResult, error) {
	rate, ok := category.Rate()
	if !ok {
		return VATResult{}, shared.NewValidationError("INVALID_VAT_CATEGORY",
			fmt.Sprintf("Unknown VAT category: %s", category))
	}
	return VATResult{Rate: rate, Amount: amount.Multiply(rate).Round(s.places)}, nil
}

// SupplementaryDutyRate returns the SD rate for category. An explicit override
// only applies to categories that attract SD.
func (s *TaxCalculationService) SupplementaryDutyRate(category ProductCategory, override *decimal.Decimal) decimal.Decimal {
	def, ok := defaultSupplementaryDutyRates[category]
	if !ok {
		return decimal.Zero
	}
	if override != nil {
		return *override
	}
	return def
}

// CalculateSupplementaryDuty computes SD for amount
func (s *TaxCalculationService) CalculateSupplementaryDuty(amount valueobject.Money, category ProductCategory, override *decimal.Decimal) (valueobject.Money, error) {
	rate := s.SupplementaryDutyRate(category, override)
	if rate.IsNegative() {
		return valueobject.Money{}, shared.NewValidationError("INVALID_SD_RATE", "Supplementary duty rate cannot be negative")
	}
	return amount.Multiply(rate).Round(s.places), nil
}

// WithholdingResult holds TDS and AIT deducted from a payment
type WithholdingResult struct {
	TDSRate   decimal.Decimal
	TDS       valueobject.Money
	AITRate   decimal.Decimal
	AIT       valueobject.Money
	Total     valueobject.Money
	NetAmount valueobject.Money
}

// TDSRate returns the effective TDS rate for a vendor type
func (s *TaxCalculationService) TDSRate(vendorType VendorType, hasTIN bool) (decimal.Decimal, error) {
	rate, ok := tdsRates[vendorType]
	if !ok {
		return decimal.Zero, shared.NewValidationError("INVALID_VENDOR_TYPE",
			fmt.Sprintf("Unknown vendor type: %s", vendorType))
	}
	if !hasTIN {
		rate = rate.Mul(s.noTINMultiplier)
	}
	return rate, nil
}

// AITRate returns the effective AIT rate. Only importers and exporters attract AIT.
func (s *TaxCalculationService) AITRate(vendorType VendorType, hasTIN bool) decimal.Decimal {
	rate, ok := aitRates[vendorType]
	if !ok {
		return decimal.Zero
	}
	if !hasTIN {
		rate = rate.Mul(s.noTINMultiplier)
	}
	return rate
}

// CalculateWithholding computes TDS and AIT on a gross payment amount
func (s *TaxCalculationService) CalculateWithholding(amount valueobject.Money, vendorType VendorType, hasTIN bool) (WithholdingResult, error) {
	if amount.IsNegative() {
		return WithholdingResult{}, shared.NewValidationError("INVALID_AMOUNT", "Amount cannot be negative")
	}
	tdsRate, err := s.TDSRate(vendorType, hasTIN)
	if err != nil {
		return WithholdingResult{}, err
	}
	aitRate := s.AITRate(vendorType, hasTIN)

	tds := amount.Multiply(tdsRate).Round(s.places)
	ait := amount.Multiply(aitRate).Round(s.places)
	total := tds.MustAdd(ait)
	return WithholdingResult{
		TDSRate:   tdsRate,
		TDS:       tds,
		AITRate:   aitRate,
		AIT:       ait,
		Total:     total,
		NetAmount: amount.MustSubtract(total),
	}, nil
}

// GetCurrentFiscalYear returns the July-June fiscal year label for date
func (s *TaxCalculationService) GetCurrentFiscalYear(date time.Time) string {
	return valueobject.FiscalYear(date)
}
