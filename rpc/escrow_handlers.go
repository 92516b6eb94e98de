package rpc

import (
	"net/http"

	"blockmarket/native/escrow"
	"blockmarket/observability"
)

type escrowBuyParams struct {
	Caller    string `json:"caller"`
	ProductID uint64 `json:"productId"`
	Payment   string `json:"payment"`
}

type escrowVoteParams struct {
	Caller    string `json:"caller"`
	ProductID uint64 `json:"productId"`
}

type escrowProductParams struct {
	ProductID uint64 `json:"productId"`
}

type escrowCallerParams struct {
	Caller string `json:"caller"`
}

type escrowAllowParams struct {
	Caller string `json:"caller"`
	Allow  bool   `json:"allow"`
}

type escrowJSON struct {
	ProductID    uint64 `json:"productId"`
	ProductName  string `json:"productName"`
	Buyer        string `json:"buyer"`
	Seller       string `json:"seller"`
	Arbiter      string `json:"arbiter"`
	Amount       string `json:"amount"`
	ReleaseVotes int    `json:"releaseVotes"`
	RefundVotes  int    `json:"refundVotes"`
	Disbursed    bool   `json:"disbursed"`
}

type escrowCountsJSON struct {
	ReleaseVotes int `json:"releaseVotes"`
	RefundVotes  int `json:"refundVotes"`
}

func escrowToJSON(esc *escrow.Escrow) escrowJSON {
	return escrowJSON{
		ProductID:    esc.ProductID,
		ProductName:  esc.ProductName,
		Buyer:        esc.Buyer.Hex(),
		Seller:       esc.Seller.Hex(),
		Arbiter:      esc.Arbiter.Hex(),
		Amount:       esc.Amount.String(),
		ReleaseVotes: len(esc.ReleaseVotes),
		RefundVotes:  len(esc.RefundVotes),
		Disbursed:    esc.Disbursed,
	}
}

func (s *Server) handleEscrowBuy(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowBuyParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressField(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	payment, err := parsePositiveBigInt(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	esc, err := s.market.Buy(caller, params.ProductID, payment)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, escrowToJSON(esc))
}

func (s *Server) handleEscrowRelease(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowVoteParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressField(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.market.ReleaseAmountToStoreOwner(caller, params.ProductID); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	if esc, infoErr := s.market.GetEscrowInfo(params.ProductID); infoErr == nil && esc.Disbursed {
		observability.Escrow().RecordDisbursement("released")
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleEscrowRefund(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowVoteParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressField(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.market.RefundAmountToBuyer(caller, params.ProductID); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	if esc, infoErr := s.market.GetEscrowInfo(params.ProductID); infoErr == nil && esc.Disbursed {
		observability.Escrow().RecordDisbursement("refunded")
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleEscrowGetInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowProductParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	esc, err := s.market.GetEscrowInfo(params.ProductID)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, escrowToJSON(esc))
}

func (s *Server) handleEscrowGetCounts(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowProductParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	releases, refunds, err := s.market.ReleaseRefundCounts(params.ProductID)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, escrowCountsJSON{ReleaseVotes: releases, RefundVotes: refunds})
}

func (s *Server) handleEscrowPause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowCallerParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressField(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.market.EscrowPause(caller); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	observability.Escrow().SetPause("escrow", true)
	writeResult(w, req.ID, true)
}

func (s *Server) handleEscrowUnpause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowCallerParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressField(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.market.EscrowUnpause(caller); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	observability.Escrow().SetPause("escrow", false)
	writeResult(w, req.ID, true)
}

func (s *Server) handleEscrowAllowWithdrawal(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowAllowParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressField(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.market.AllowBuyerWithdrawal(caller, params.Allow); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleEscrowBuyerWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowVoteParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressField(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.market.BuyerWithdraw(caller, params.ProductID); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	observability.Escrow().RecordDisbursement("withdrawn")
	writeResult(w, req.ID, true)
}
