package bytecode

// Op is a VM instruction opcode. Operands live in the Instr payload fields;
// string and constant operands are pool indices.
type Op uint8

const (
	// stack
	OpPop Op = iota
	OpDup
	OpSwap

	// literals
	OpPushNull
	OpPushTrue
	OpPushFalse
	OpPushInt    // A: const index
	OpPushFloat  // A: const index
	OpPushString // A: string index
	OpLoadConst  // A: const index

	// variables
	OpLoadFast     // A: local slot
	OpStoreFast    // A: local slot
	OpLoadGlobal   // A: string index (name)
	OpStoreGlobal  // A: string index
	OpUnsetLocal   // A: local slot
	OpUnsetGlobal  // A: string index
	OpVivifyLocal  // A: local slot; ensures the slot holds an array, pushes it
	OpVivifyGlobal // A: string index; same for a global
	OpLoadThis     // pushes the bound receiver

	// arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpNeg
	OpConcat

	// comparison
	OpEq
	OpNe
	OpIdentical
	OpNotIdentical
	OpLt
	OpLe
	OpGt
	OpGe
	OpSpaceship

	// logical
	OpNot
	OpXor
	OpIsSet // pops one value, pushes whether it is non-null

	// control flow
	OpJump          // A: target instruction index
	OpJumpIfFalse   // A: target
	OpJumpIfTrue    // A: target
	OpJumpIfNull    // A: target (peeks, does not pop)
	OpJumpIfNotNull // A: target (peeks, does not pop)
	OpReturn
	OpReturnNull
	OpBreak
	OpContinue
	OpLoopStart // A: continue target, B: break target
	OpLoopEnd

	// arrays
	OpNewArray         // A: element count (key/value pairs on stack, null key = append)
	OpArrayGet         // [arr key] -> value
	OpArrayGetForWrite // [arr key] -> element, inserting an empty array when absent
	OpArraySet         // [arr key value] -> value, mutates arr in place
	OpArrayAppend      // [arr value] -> value, mutates arr in place
	OpArrayPush        // [arr key value] -> arr (null key = append); literal building
	OpArrayExtend      // [arr src] -> arr, appends src entries per merge rules
	OpArrayCount
	OpArrayGetKeyAt   // [arr idx] -> key at iteration position
	OpArrayGetValueAt // [arr idx] -> value at iteration position
	OpUnsetArrayElement

	// function calls
	OpCall         // A: name string index, B: argc (positional args on stack)
	OpCallNamed    // A: name string index (keyed args array on stack)
	OpCallCallable // A: argc, B: 1 when a keyed args array replaces the args

	// closures
	OpCreateClosure // A: function pool index, B: capture count (values on stack)

	// objects
	OpNewObject            // A: class string index
	OpCallConstructor      // A: argc
	OpCallConstructorNamed //
	OpLoadProperty         // A: name string index
	OpStoreProperty        // A: name string index
	OpStoreThisProperty    // A: name string index
	OpStoreCloneProperty   // A: name string index
	OpLoadStaticProp       // A: class string index, B: name string index
	OpStoreStaticProp      // A: class, B: name
	OpCallMethod           // A: name, B: argc
	OpCallMethodNamed      // A: name (keyed args array on stack)
	OpCallStaticMethod     // A: class, B: name, C: argc
	OpCallStaticMethodNamed
	OpLoadClassConst // A: class, B: name (also resolves enum cases and ::class)
	OpInstanceOf     // A: class string index
	OpClone
	OpIssetProperty // A: name string index
	OpUnsetProperty // A: name string index

	// exceptions
	OpThrow
	OpTryStart // A: catch target, B: finally target (-1 = none)
	OpTryEnd
	OpFinallyStart
	OpFinallyEnd

	// generators
	OpYield // A: 1 when a key is on the stack under the value
	OpYieldFrom

	// output and process
	OpEcho
	OpPrint
	OpCast // A: CastKind
	OpExit // A: 1 when a payload is on the stack
)

// CastKind is the payload of OpCast.
type CastKind int32

const (
	CastInt CastKind = iota
	CastFloat
	CastString
	CastBool
	CastArray
	CastObject
)

var opNames = map[Op]string{
	OpPop: "Pop", OpDup: "Dup", OpSwap: "Swap",
	OpPushNull: "PushNull", OpPushTrue: "PushTrue", OpPushFalse: "PushFalse",
	OpPushInt: "PushInt", OpPushFloat: "PushFloat", OpPushString: "PushString",
	OpLoadConst: "LoadConst",
	OpLoadFast:  "LoadFast", OpStoreFast: "StoreFast",
	OpLoadGlobal: "LoadGlobal", OpStoreGlobal: "StoreGlobal",
	OpUnsetLocal: "UnsetLocal", OpUnsetGlobal: "UnsetGlobal",
	OpVivifyLocal: "VivifyLocal", OpVivifyGlobal: "VivifyGlobal", OpLoadThis: "LoadThis",
	OpAdd: "Add", OpSub: "Sub", OpMul: "Mul", OpDiv: "Div", OpMod: "Mod",
	OpPow: "Pow", OpNeg: "Neg", OpConcat: "Concat",
	OpEq: "Eq", OpNe: "Ne", OpIdentical: "Identical", OpNotIdentical: "NotIdentical",
	OpLt: "Lt", OpLe: "Le", OpGt: "Gt", OpGe: "Ge", OpSpaceship: "Spaceship",
	OpNot: "Not", OpXor: "Xor", OpIsSet: "IsSet",
	OpJump: "Jump", OpJumpIfFalse: "JumpIfFalse", OpJumpIfTrue: "JumpIfTrue",
	OpJumpIfNull: "JumpIfNull", OpJumpIfNotNull: "JumpIfNotNull",
	OpReturn: "Return", OpReturnNull: "ReturnNull",
	OpBreak: "Break", OpContinue: "Continue",
	OpLoopStart: "LoopStart", OpLoopEnd: "LoopEnd",
	OpNewArray: "NewArray", OpArrayGet: "ArrayGet", OpArrayGetForWrite: "ArrayGetForWrite",
	OpArraySet: "ArraySet", OpArrayAppend: "ArrayAppend",
	OpArrayPush: "ArrayPush", OpArrayExtend: "ArrayExtend", OpArrayCount: "ArrayCount",
	OpArrayGetKeyAt: "ArrayGetKeyAt", OpArrayGetValueAt: "ArrayGetValueAt",
	OpUnsetArrayElement: "UnsetArrayElement",
	OpCall: "Call", OpCallNamed: "CallNamed",
	OpCallCallable:  "CallCallable",
	OpCreateClosure: "CreateClosure",
	OpNewObject: "NewObject", OpCallConstructor: "CallConstructor",
	OpCallConstructorNamed: "CallConstructorNamed",
	OpLoadProperty:         "LoadProperty", OpStoreProperty: "StoreProperty",
	OpStoreThisProperty: "StoreThisProperty", OpStoreCloneProperty: "StoreCloneProperty",
	OpLoadStaticProp: "LoadStaticProp", OpStoreStaticProp: "StoreStaticProp",
	OpCallMethod: "CallMethod", OpCallMethodNamed: "CallMethodNamed",
	OpCallStaticMethod: "CallStaticMethod", OpCallStaticMethodNamed: "CallStaticMethodNamed",
	OpLoadClassConst: "LoadClassConst",
	OpInstanceOf: "InstanceOf", OpClone: "Clone",
	OpIssetProperty: "IssetProperty", OpUnsetProperty: "UnsetProperty",
	OpThrow: "Throw", OpTryStart: "TryStart", OpTryEnd: "TryEnd",
	OpFinallyStart: "FinallyStart", OpFinallyEnd: "FinallyEnd",
	OpYield: "Yield", OpYieldFrom: "YieldFrom",
	OpEcho: "Echo", OpPrint: "Print", OpCast: "Cast", OpExit: "Exit",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "Unknown"
}
