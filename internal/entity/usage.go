package entity

// SellerUsage holds the billing counters of one seller.
type SellerUsage struct {
	SellerID         string `json:"seller_id"`
	OCRScans         int64  `json:"ocr_scans"`
	CustomerOCRScans int64  `json:"customer_ocr_scans"`
}
