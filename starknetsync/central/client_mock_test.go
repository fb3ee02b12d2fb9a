package central

import (
	"context"
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/starkware-libs/starksync-go/starknetapi"
)

// MockFeederClient is the shape mockgen would generate for FeederClient;
// written by hand since the toolchain isn't run in this module, but
// otherwise following the same gomock.Controller/Call bookkeeping a
// generated mock uses. Kept next to the interface it mocks, package-local,
// the way the teacher keeps its generated mocks alongside the interfaces
// under test.
type MockFeederClient struct {
	ctrl     *gomock.Controller
	recorder *MockFeederClientMockRecorder
}

type MockFeederClientMockRecorder struct {
	mock *MockFeederClient
}

func NewMockFeederClient(ctrl *gomock.Controller) *MockFeederClient {
	m := &MockFeederClient{ctrl: ctrl}
	m.recorder = &MockFeederClientMockRecorder{mock: m}
	return m
}

func (m *MockFeederClient) EXPECT() *MockFeederClientMockRecorder {
	return m.recorder
}

func (m *MockFeederClient) GetBlockNumber(ctx context.Context) (*starknetapi.BlockNumber, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetBlockNumber", ctx)
	ret0, _ := ret[0].(*starknetapi.BlockNumber)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockFeederClientMockRecorder) GetBlockNumber(ctx interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetBlockNumber", reflect.TypeOf((*MockFeederClient)(nil).GetBlockNumber), ctx)
}

func (m *MockFeederClient) GetBlock(ctx context.Context, n starknetapi.BlockNumber) (*starknetapi.Block, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetBlock", ctx, n)
	ret0, _ := ret[0].(*starknetapi.Block)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockFeederClientMockRecorder) GetBlock(ctx, n interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetBlock", reflect.TypeOf((*MockFeederClient)(nil).GetBlock), ctx, n)
}

func (m *MockFeederClient) GetStateUpdate(ctx context.Context, n starknetapi.BlockNumber) (*stateUpdateWire, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetStateUpdate", ctx, n)
	ret0, _ := ret[0].(*stateUpdateWire)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockFeederClientMockRecorder) GetStateUpdate(ctx, n interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetStateUpdate", reflect.TypeOf((*MockFeederClient)(nil).GetStateUpdate), ctx, n)
}

func (m *MockFeederClient) GetContractClass(ctx context.Context, classHash starknetapi.ClassHash) (*ApiContractClass, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetContractClass", ctx, classHash)
	ret0, _ := ret[0].(*ApiContractClass)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockFeederClientMockRecorder) GetContractClass(ctx, classHash interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetContractClass", reflect.TypeOf((*MockFeederClient)(nil).GetContractClass), ctx, classHash)
}

var _ FeederClient = (*MockFeederClient)(nil)
