package tracing

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/coherence/datarecording"
	"github.com/sarchlab/coherence/mem/coherence"
	"github.com/sarchlab/coherence/sim"
)

var _ = Describe("AccessRecorder with SQLite", func() {
	var (
		path string
		r    *AccessRecorder
		db   datarecording.DataRecorder
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "trace")
		db = datarecording.New(path)
		r = NewAccessRecorder(db)
	})

	It("should write accesses and transitions that can be read back", func() {
		line := coherence.NewCacheLine(64)
		line.BaseAddr = 0x40

		r.Func(accessCtx("L1", coherence.CmdGetS,
			coherence.AccessRead, coherence.AccessMiss))
		r.Func(sim.HookCtx{
			Pos:  coherence.HookPosTransition,
			Item: line,
			Detail: coherence.TransitionInfo{
				Controller: "L1",
				Cycle:      9,
				From:       coherence.StateIS,
				To:         coherence.StateS,
			},
		})
		db.Flush()

		reader := datarecording.NewReader(path + ".sqlite3")
		defer reader.Close()

		reader.MapTable(AccessTableName, AccessEntry{})
		reader.MapTable(TransitionTableName, TransitionEntry{})

		accesses, total, err := reader.Query(context.Background(),
			AccessTableName, datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(1))

		access := accesses[0].(*AccessEntry)
		Expect(access.Controller).To(Equal("L1"))
		Expect(access.Cmd).To(Equal("GetS"))
		Expect(access.Addr).To(Equal(uint64(0x48)))
		Expect(access.Type).To(Equal("Read"))
		Expect(access.Result).To(Equal("Miss"))

		transitions, total, err := reader.Query(context.Background(),
			TransitionTableName, datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(1))
		Expect(*transitions[0].(*TransitionEntry)).To(Equal(TransitionEntry{
			Controller: "L1",
			Cycle:      9,
			Addr:       0x40,
			From:       "IS",
			To:         "S",
		}))
	})
})
