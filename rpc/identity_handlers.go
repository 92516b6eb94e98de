package rpc

import (
	"net/http"

	"blockmarket/native/identity"
)

type identityRegisterParams struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}

type identityAddressParams struct {
	Address string `json:"address"`
}

type identityIndexParams struct {
	Index uint64 `json:"index"`
}

type userJSON struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    string `json:"role"`
}

func userToJSON(u *identity.User) userJSON {
	return userJSON{
		Address: u.Address.Hex(),
		Name:    u.Name,
		Email:   u.Email,
		Role:    u.Role.String(),
	}
}

func (s *Server) handleIdentityRegisterAdmin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params identityRegisterParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressField(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddressField(params.Address, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	user, err := s.market.RegisterAdmin(caller, addr, params.Name, params.Email)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, userToJSON(user))
}

func (s *Server) handleIdentityRegisterStoreOwner(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params identityRegisterParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressField(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddressField(params.Address, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	user, err := s.market.RegisterStoreOwner(caller, addr, params.Name, params.Email)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, userToJSON(user))
}

func (s *Server) handleIdentityIsAdmin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params identityAddressParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddressField(params.Address, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	writeResult(w, req.ID, s.market.IsActiveAdmin(addr))
}

func (s *Server) handleIdentityIsStoreOwner(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params identityAddressParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddressField(params.Address, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	writeResult(w, req.ID, s.market.IsActiveStoreOwner(addr))
}

func (s *Server) handleIdentityGetUser(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params identityAddressParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddressField(params.Address, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	user, err := s.market.GetUser(addr)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, userToJSON(user))
}

func (s *Server) handleIdentityAdminCount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, s.market.TotalAdmins())
}

func (s *Server) handleIdentityAdminAddress(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params identityIndexParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := s.market.AdminAddress(params.Index)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, addr.Hex())
}

func (s *Server) handleIdentityStoreOwnerCount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, s.market.TotalStoreOwners())
}

func (s *Server) handleIdentityStoreOwnerAddress(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params identityIndexParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := s.market.StoreOwnerAddress(params.Index)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, addr.Hex())
}
