package contracts

import (
	"encoding/json"
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// UserRegistryContract manages supply chain participants and their roles.
// It is the identity collaborator the custody contract resolves transfer
// targets against.
type UserRegistryContract struct {
	contractapi.Contract
}

const userKeyPrefix = "user_"

// InitUsers seeds the registry with the bootstrap admin account.
func (r *UserRegistryContract) InitUsers(ctx contractapi.TransactionContextInterface) error {
	admin := User{Username: "admin", Role: RoleSuperAdmin}

	adminJSON, err := json.Marshal(admin)
	if err != nil {
		return err
	}
	return ctx.GetStub().PutState(userKeyPrefix+admin.Username, adminJSON)
}

// RegisterUser registers a participant under one of the supply chain
// roles. Only an existing super_admin may create another super_admin.
func (r *UserRegistryContract) RegisterUser(ctx contractapi.TransactionContextInterface,
	username string, roleStr string) error {

	if username == "" {
		return fmt.Errorf("username is required")
	}

	role, err := ParseRole(roleStr)
	if err != nil {
		return err
	}

	existing, err := ctx.GetStub().GetState(userKeyPrefix + username)
	if err != nil {
		return fmt.Errorf("failed to read user: %v", err)
	}
	if existing != nil {
		return fmt.Errorf("user %s already exists", username)
	}

	if role == RoleSuperAdmin {
		caller, err := callerUser(ctx)
		if err != nil {
			return err
		}
		if caller.Role != RoleSuperAdmin {
			return fmt.Errorf("only super admin can register a super admin")
		}
	}

	user := User{Username: username, Role: role}
	userJSON, err := json.Marshal(user)
	if err != nil {
		return err
	}

	err = ctx.GetStub().PutState(userKeyPrefix+username, userJSON)
	if err != nil {
		return err
	}

	ctx.GetStub().SetEvent("UserRegistered", userJSON)
	return nil
}

// GetUser retrieves a registered user by username.
func (r *UserRegistryContract) GetUser(ctx contractapi.TransactionContextInterface,
	username string) (*User, error) {
	return resolveUserState(ctx, username)
}

// UserExists checks if a user is registered.
func (r *UserRegistryContract) UserExists(ctx contractapi.TransactionContextInterface,
	username string) (bool, error) {

	userJSON, err := ctx.GetStub().GetState(userKeyPrefix + username)
	if err != nil {
		return false, fmt.Errorf("failed to read user: %v", err)
	}
	return userJSON != nil, nil
}

// GetAllUsers returns every registered participant.
func (r *UserRegistryContract) GetAllUsers(ctx contractapi.TransactionContextInterface) ([]*User, error) {
	resultsIterator, err := ctx.GetStub().GetStateByRange(userKeyPrefix, userKeyPrefix+"~")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %v", err)
	}
	defer resultsIterator.Close()

	var users []*User
	for resultsIterator.HasNext() {
		queryResponse, err := resultsIterator.Next()
		if err != nil {
			return nil, err
		}

		var user User
		err = json.Unmarshal(queryResponse.Value, &user)
		if err != nil {
			continue
		}
		users = append(users, &user)
	}

	return users, nil
}

// GetUsersByRole returns all participants holding a specific role.
func (r *UserRegistryContract) GetUsersByRole(ctx contractapi.TransactionContextInterface,
	roleStr string) ([]*User, error) {

	role, err := ParseRole(roleStr)
	if err != nil {
		return nil, err
	}

	allUsers, err := r.GetAllUsers(ctx)
	if err != nil {
		return nil, err
	}

	var filtered []*User
	for _, user := range allUsers {
		if user.Role == role {
			filtered = append(filtered, user)
		}
	}
	return filtered, nil
}

// resolveUserState loads a user record from world state.
func resolveUserState(ctx contractapi.TransactionContextInterface, username string) (*User, error) {
	userJSON, err := ctx.GetStub().GetState(userKeyPrefix + username)
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %v", err)
	}
	if userJSON == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}

	var user User
	err = json.Unmarshal(userJSON, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// callerUser resolves the invoking client to a registered user. The
// username comes from the client certificate's "username" attribute,
// falling back to the MSP ID for org-level identities.
func callerUser(ctx contractapi.TransactionContextInterface) (User, error) {
	username, found, err := ctx.GetClientIdentity().GetAttributeValue("username")
	if err != nil {
		return User{}, fmt.Errorf("failed to get caller identity: %v", err)
	}
	if !found || username == "" {
		username, err = ctx.GetClientIdentity().GetMSPID()
		if err != nil {
			return User{}, fmt.Errorf("failed to get caller identity: %v", err)
		}
	}

	user, err := resolveUserState(ctx, username)
	if err != nil {
		return User{}, err
	}
	return *user, nil
}
