package service

import (
	"github.com/yndnr/chathub-go/internal/storage/memory"
	"github.com/yndnr/chathub-go/internal/telemetry/metric"
)

// Status is the payload of the status endpoint.
type Status struct {
	memory.Stats
	LastPublish *PublishInfo   `json:"last_publish,omitempty"`
	Restored    *RestoreResult `json:"restored,omitempty"`
}

// Status reports store sizes together with backup progress.
func (b *BackupService) Status() Status {
	return Status{
		Stats:       b.store.Stats(),
		LastPublish: b.LastPublish(),
		Restored:    b.Restored(),
	}
}

// StateSource adapts store statistics for the metric state collector.
func StateSource(store *memory.Store) metric.StateSource {
	return func() metric.StateCounts {
		st := store.Stats()
		return metric.StateCounts{
			Accounts:         st.Accounts,
			Sessions:         st.Sessions,
			Messages:         st.Messages,
			MessagesAppended: st.Appended,
			MessagesTrimmed:  st.TrimmedTotal,
		}
	}
}
