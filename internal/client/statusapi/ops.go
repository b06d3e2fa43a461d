package statusapi

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func healthOp() huma.Operation {
	return huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"health"},
	}
}

func statusOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Connectivity and sync state",
		Tags:        []string{"sync"},
	}
}

func syncOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-run",
		Method:      http.MethodPost,
		Path:        "/sync",
		Summary:     "Replay all mutation queues now",
		Description: "Fails with 409 while another sync is running.",
		Tags:        []string{"sync"},
	}
}

func pendingOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-pending",
		Method:      http.MethodGet,
		Path:        "/pending",
		Summary:     "Queued mutations per table",
		Tags:        []string{"sync"},
	}
}
