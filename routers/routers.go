package routers

import (
	"dpow-project/handlers"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up all the HTTP routes for the node
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {

	// Appends a block delivered by the consensus collaborator
	r.HandleFunc("/blocks", h.ConnectBlock).Methods("POST")

	// Block on the current chain by height
	r.HandleFunc("/blocks/{height:[0-9]+}", h.GetBlock).Methods("GET")

	// Notarization checkpoints from the relay; replays are tolerated
	r.HandleFunc("/notarizations", h.SubmitNotarization).Methods("POST")

	// Tip and latest notarization
	r.HandleFunc("/info", h.GetInfo).Methods("GET")

	// Wallet outputs and confirmation-filtered queries
	r.HandleFunc("/wallet/outputs", h.RecordOutput).Methods("POST")
	r.HandleFunc("/wallet/unspent", h.ListUnspent).Methods("GET")
	r.HandleFunc("/wallet/received", h.ListReceivedByAddress).Methods("GET")
	r.HandleFunc("/wallet/balance", h.GetBalance).Methods("GET")
	r.HandleFunc("/wallet/transactions/{txid}", h.GetTransaction).Methods("GET")
}
