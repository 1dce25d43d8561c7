package session

import (
	"context"
	"fmt"
	"reflect"

	"bridge-rpc/message"
)

type methodType struct {
	method    reflect.Method
	withCtx   bool
	ArgType   reflect.Type
	ReplyType reflect.Type
}

type service struct {
	name   string
	rcvr   reflect.Value
	typ    reflect.Type
	method map[string]*methodType
}

var (
	errorType   = reflect.TypeFor[error]()
	contextType = reflect.TypeFor[context.Context]()
)

// newService inspects rcvr and collects its exported methods shaped like
//
//	func (t *T) Method(args *A, reply *R) error
//	func (t *T) Method(ctx context.Context, args *A, reply *R) error
func newService(rcvr any) (*service, error) {
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.Kind() != reflect.Pointer {
		return nil, fmt.Errorf("session: receiver must be a pointer, got %T", rcvr)
	}
	if typ.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("session: receiver must point to a struct, got %s", typ.Elem().Kind())
	}

	svc := &service{
		name:   typ.Elem().Name(),
		rcvr:   reflect.ValueOf(rcvr),
		typ:    typ,
		method: make(map[string]*methodType),
	}
	svc.registerMethods()
	if len(svc.method) == 0 {
		return nil, fmt.Errorf("session: %s has no methods of the form (args *A, reply *R) error", svc.name)
	}
	return svc, nil
}

func (s *service) registerMethods() {
	for i := 0; i < s.typ.NumMethod(); i++ {
		method := s.typ.Method(i)
		mt := method.Type
		if mt.NumOut() != 1 || mt.Out(0) != errorType {
			continue
		}

		first := 1
		withCtx := false
		switch {
		case mt.NumIn() == 4 && mt.In(1) == contextType:
			first, withCtx = 2, true
		case mt.NumIn() == 3:
		default:
			continue
		}
		if mt.In(first).Kind() != reflect.Pointer || mt.In(first+1).Kind() != reflect.Pointer {
			continue
		}

		s.method[method.Name] = &methodType{
			method:    method,
			withCtx:   withCtx,
			ArgType:   mt.In(first).Elem(),
			ReplyType: mt.In(first + 1).Elem(),
		}
	}
}

func (s *service) call(ctx context.Context, mType *methodType, argv, replyv reflect.Value) error {
	var results []reflect.Value
	if mType.withCtx {
		results = mType.method.Func.Call([]reflect.Value{s.rcvr, reflect.ValueOf(ctx), argv, replyv})
	} else {
		results = mType.method.Func.Call([]reflect.Value{s.rcvr, argv, replyv})
	}
	if !results[0].IsNil() {
		return results[0].Interface().(error)
	}
	return nil
}

func (s *service) handler(mType *methodType) Handler {
	return func(ctx context.Context, args message.Args) (any, error) {
		argv := reflect.New(mType.ArgType)
		replyv := reflect.New(mType.ReplyType)
		if err := args.Bind(argv.Interface()); err != nil {
			return nil, err
		}
		if err := s.call(ctx, mType, argv, replyv); err != nil {
			return nil, err
		}
		return replyv.Interface(), nil
	}
}

// RegisterService receives every method of rcvr under "Type.Method", e.g. &Arith{} with
// a method Add becomes "Arith.Add". The single call argument is decoded into *A and the
// reply is whatever the method leaves in *R.
func (s *Session) RegisterService(rcvr any) ([]string, error) {
	svc, err := newService(rcvr)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(svc.method))
	for methodName, mType := range svc.method {
		name := svc.name + "." + methodName
		if err := s.Receive(name, svc.handler(mType)); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

// ValidateService reports whether rcvr is acceptable to RegisterService.
func ValidateService(rcvr any) error {
	_, err := newService(rcvr)
	return err
}
