package rpc

import "net/http"

type escrowOpenParams struct {
	Buyer          string `json:"buyer"`
	AssetID        uint64 `json:"assetId"`
	BuyerPubKey    string `json:"buyerPubKey"`
	TimeoutSeconds int64  `json:"timeoutSeconds"`
	Payment        string `json:"payment"`
}

type escrowConfirmParams struct {
	Caller       string `json:"caller"`
	ID           uint64 `json:"id"`
	Proof        string `json:"proof"`
	ChannelTopic string `json:"channelTopic"`
	ChannelRound uint64 `json:"channelRound"`
}

type escrowActorParams struct {
	Caller string `json:"caller"`
	ID     uint64 `json:"id"`
}

type escrowIDParams struct {
	ID uint64 `json:"id"`
}

func (s *Server) handleEscrowOpen(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowOpenParams
	if !singleParams(w, req, &params) {
		return
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", err.Error())
		return
	}
	pubKey, err := parseBytes(params.BuyerPubKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", "buyerPubKey: "+err.Error())
		return
	}
	payment, err := parsePositiveBigInt(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", "payment: "+err.Error())
		return
	}
	esc, err := s.escrow.Open(buyer, params.AssetID, pubKey, params.TimeoutSeconds, payment)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, escrowToJSON(esc))
}

func (s *Server) handleEscrowConfirmDelivery(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowConfirmParams
	if !singleParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", err.Error())
		return
	}
	proof, err := parseHash32(params.Proof)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", "proof: "+err.Error())
		return
	}
	topic, err := parseHash32(params.ChannelTopic)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", "channelTopic: "+err.Error())
		return
	}
	if err := s.escrow.ConfirmDelivery(caller, params.ID, proof, topic, params.ChannelRound); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleEscrowClaimRefund(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowActorParams
	if !singleParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.escrow.ClaimRefund(caller, params.ID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleEscrowCanRefund(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowIDParams
	if !singleParams(w, req, &params) {
		return
	}
	ok, err := s.escrow.CanRefund(params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"canRefund": ok})
}

func (s *Server) handleEscrowGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowIDParams
	if !singleParams(w, req, &params) {
		return
	}
	esc, ok, err := s.escrow.Get(params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeDomainNotFound, "not_found", "escrow unknown")
		return
	}
	writeResult(w, req.ID, escrowToJSON(esc))
}
