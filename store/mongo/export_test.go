package mongostore

var (
	DailySaleUpdate  = dailySaleUpdate
	SettledRunFilter = settledRunFilter
	RunFilter        = runFilter
)
