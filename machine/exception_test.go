package machine

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("RaiseException", func() {
	var (
		mockCtrl  *gomock.Controller
		interrupt *MockInterrupt
		handler   *MockExceptionHandler
		m         *Machine
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		interrupt = NewMockInterrupt(mockCtrl)
		handler = NewMockExceptionHandler(mockCtrl)
		m = MakeBuilder().
			WithInterrupt(interrupt).
			WithExceptionHandler(handler).
			Build("Machine")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should trap into the kernel and come back to user mode", func() {
		gomock.InOrder(
			interrupt.EXPECT().SetStatus(SystemMode),
			handler.EXPECT().Handle(PageFaultException).
				Do(func(which ExceptionType) {
					Expect(m.ReadRegister(BadVAddrReg)).To(Equal(0x2000))
				}),
			interrupt.EXPECT().SetStatus(UserMode),
		)

		m.RaiseException(PageFaultException, 0x2000)
	})

	It("should finish the delayed load before trapping", func() {
		m.WriteRegister(LoadReg, 5)
		m.WriteRegister(LoadValueReg, 42)

		interrupt.EXPECT().SetStatus(gomock.Any()).AnyTimes()
		handler.EXPECT().Handle(SyscallException).
			Do(func(which ExceptionType) {
				Expect(m.ReadRegister(5)).To(Equal(42))
				Expect(m.ReadRegister(LoadReg)).To(Equal(0))
				Expect(m.ReadRegister(LoadValueReg)).To(Equal(0))
			})

		m.RaiseException(SyscallException, 0)
	})

	It("should fire the exception hook before the handler runs", func() {
		hooked := false
		m.AcceptHook(hookFunc(func(pos string, item any) {
			Expect(pos).To(Equal(HookPosException.Name))
			Expect(item).To(Equal(ExceptionEvent{
				Kind:           ReadOnlyException,
				BadVAddr:       0x44,
				AddressSpaceID: 3,
			}))
			hooked = true
		}))
		m.SetAddressSpace(3)

		interrupt.EXPECT().SetStatus(gomock.Any()).AnyTimes()
		handler.EXPECT().Handle(ReadOnlyException).
			Do(func(which ExceptionType) {
				Expect(hooked).To(BeTrue())
			})

		m.RaiseException(ReadOnlyException, 0x44)
	})
})

var _ = Describe("StatusRegister", func() {
	It("should be in user mode after the handler returns", func() {
		status := NewStatusRegister()
		var modeInHandler MachineStatus

		var m *Machine
		m = MakeBuilder().
			WithInterrupt(status).
			WithExceptionHandler(ExceptionHandlerFunc(
				func(which ExceptionType) {
					modeInHandler = status.Status()
					Expect(m.ReadRegister(BadVAddrReg)).To(Equal(0x2000))
				})).
			Build("Machine")

		m.RaiseException(PageFaultException, 0x2000)

		Expect(modeInHandler).To(Equal(SystemMode))
		Expect(status.Status()).To(Equal(UserMode))
		Expect(m.ReadRegister(BadVAddrReg)).To(Equal(0x2000))
	})

	It("should panic without a kernel handler", func() {
		m := MakeBuilder().Build("Machine")

		Expect(func() { m.RaiseException(SyscallException, 0) }).To(Panic())
	})
})
