package models

// SyncError records one per-item failure during a sync run.
type SyncError struct {
	Item    string `json:"item"`
	Message string `json:"message"`
}

// SyncItem pairs the local and remote identifiers of one reconciled item.
type SyncItem struct {
	Local  string `json:"local,omitempty"`
	Remote string `json:"remote,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// SyncDetails holds the per-item audit trail for a sync run.
type SyncDetails struct {
	Added      []SyncItem `json:"added,omitempty"`
	Updated    []SyncItem `json:"updated,omitempty"`
	Conflicted []SyncItem `json:"conflicted,omitempty"`
	Failed     []SyncItem `json:"failed,omitempty"`
	Skipped    []SyncItem `json:"skipped,omitempty"`
}

// SyncResult summarizes one sync invocation. It is a value object returned
// to the caller; nothing here is persisted.
type SyncResult struct {
	Added     int         `json:"added"`
	Updated   int         `json:"updated"`
	Deleted   int         `json:"deleted"`
	Conflicts int         `json:"conflicts"`
	Errors    []SyncError `json:"errors,omitempty"`
	Details   SyncDetails `json:"details"`
}

// Merge folds another result into r, summing counts and appending detail.
func (r *SyncResult) Merge(other *SyncResult) {
	if other == nil {
		return
	}
	r.Added += other.Added
	r.Updated += other.Updated
	r.Deleted += other.Deleted
	r.Conflicts += other.Conflicts
	r.Errors = append(r.Errors, other.Errors...)
	r.Details.Added = append(r.Details.Added, other.Details.Added...)
	r.Details.Updated = append(r.Details.Updated, other.Details.Updated...)
	r.Details.Conflicted = append(r.Details.Conflicted, other.Details.Conflicted...)
	r.Details.Failed = append(r.Details.Failed, other.Details.Failed...)
	r.Details.Skipped = append(r.Details.Skipped, other.Details.Skipped...)
}
