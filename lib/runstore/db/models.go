package db

type Run struct {
	ID          int64
	SessionID   string
	Seed        string
	Started     int64
	Finished    int64
	Pages       int64
	RecordCount int64
	Reason      string
	Fault       string
}

type RunRecord struct {
	ID    int64
	RunID int64
	Page  int64
	Data  string
}
